package thumbnail

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func writeJPEG(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	path := filepath.Join(t.TempDir(), "original.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	return path
}

func decodeDims(t *testing.T, buf *bytes.Buffer) (int, int) {
	t.Helper()
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("failed to decode thumbnail: %v", err)
	}
	return cfg.Width, cfg.Height
}

func TestRender_ScalesDownLandscape(t *testing.T) {
	path := writeJPEG(t, 2048, 1024)

	buf, err := New(512).Render(path)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	w, h := decodeDims(t, buf)
	if w != 512 || h != 256 {
		t.Errorf("expected 512x256, got %dx%d", w, h)
	}
}

func TestRender_ScalesDownPortrait(t *testing.T) {
	path := writeJPEG(t, 600, 1200)

	buf, err := New(512).Render(path)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	w, h := decodeDims(t, buf)
	if h != 512 || w != 256 {
		t.Errorf("expected 256x512, got %dx%d", w, h)
	}
}

func TestRender_KeepsSmallImages(t *testing.T) {
	path := writeJPEG(t, 300, 200)

	buf, err := New(512).Render(path)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}

	w, h := decodeDims(t, buf)
	if w != 300 || h != 200 {
		t.Errorf("expected 300x200 unchanged, got %dx%d", w, h)
	}
}

func TestRender_MissingFile(t *testing.T) {
	if _, err := New(512).Render(filepath.Join(t.TempDir(), "gone.jpg")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRender_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if _, err := New(512).Render(path); err == nil {
		t.Fatal("expected error for corrupt file")
	}
}
