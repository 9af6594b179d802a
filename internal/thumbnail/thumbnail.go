// Package thumbnail renders bounded-box previews of original photos.
// Thumbnails are best effort: callers treat a failure here as a warning, not
// as a processing failure.
package thumbnail

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// Maker renders JPEG previews fitting within a square bounding box while
// preserving aspect ratio and EXIF orientation.
type Maker struct {
	maxEdge int
}

// New creates a maker with the given maximum edge length in pixels.
func New(maxEdge int) *Maker {
	return &Maker{maxEdge: maxEdge}
}

// Render decodes the original at srcPath and returns the encoded JPEG
// preview. Images already within bounds are re-encoded without scaling.
func (m *Maker) Render(srcPath string) (*bytes.Buffer, error) {
	img, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode original: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > m.maxEdge || bounds.Dy() > m.maxEdge {
		img = imaging.Fit(img, m.maxEdge, m.maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return &buf, nil
}
