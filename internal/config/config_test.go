package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Cluster.GapHours != 4 {
		t.Errorf("expected default gap 4 hours, got %f", cfg.Cluster.GapHours)
	}
	if cfg.Cluster.DebounceTTL != 5 {
		t.Errorf("expected default debounce TTL 5, got %d", cfg.Cluster.DebounceTTL)
	}
	if cfg.Cluster.RetryDelay != 3 {
		t.Errorf("expected default retry delay 3, got %d", cfg.Cluster.RetryDelay)
	}
	if cfg.Cluster.MaxRetries != 2 {
		t.Errorf("expected default max retries 2, got %d", cfg.Cluster.MaxRetries)
	}
	if cfg.Process.JobTimeout != 120 {
		t.Errorf("expected default process timeout 120, got %d", cfg.Process.JobTimeout)
	}
	if cfg.Cluster.JobTimeout != 60 {
		t.Errorf("expected default cluster timeout 60, got %d", cfg.Cluster.JobTimeout)
	}
	if cfg.Storage.ThumbMaxEdge != 512 {
		t.Errorf("expected default thumb edge 512, got %d", cfg.Storage.ThumbMaxEdge)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MEETING_GAP_HOURS", "1.5")
	t.Setenv("CLUSTER_DEBOUNCE_TTL", "10")
	t.Setenv("THUMB_MAX_EDGE", "256")

	cfg := Load()

	if cfg.Cluster.GapHours != 1.5 {
		t.Errorf("expected gap 1.5 hours, got %f", cfg.Cluster.GapHours)
	}
	if got := cfg.Cluster.Gap(); got != 90*time.Minute {
		t.Errorf("expected gap duration 90m, got %v", got)
	}
	if cfg.Cluster.DebounceTTL != 10 {
		t.Errorf("expected debounce TTL 10, got %d", cfg.Cluster.DebounceTTL)
	}
	if cfg.Storage.ThumbMaxEdge != 256 {
		t.Errorf("expected thumb edge 256, got %d", cfg.Storage.ThumbMaxEdge)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("MEETING_GAP_HOURS", "not-a-number")
	t.Setenv("CLUSTER_MAX_RETRIES", "-1")

	cfg := Load()

	if cfg.Cluster.GapHours != 4 {
		t.Errorf("expected fallback gap 4 hours, got %f", cfg.Cluster.GapHours)
	}
	if cfg.Cluster.MaxRetries != 2 {
		t.Errorf("expected fallback max retries 2, got %d", cfg.Cluster.MaxRetries)
	}
}

func TestMimeConfig_Ext(t *testing.T) {
	cfg := Load()

	tests := []struct {
		mime     string
		wantExt  string
		accepted bool
	}{
		{"image/jpeg", "jpg", true},
		{"image/png", "png", true},
		{"image/tiff", "tif", true},
		{"image/heic", "heic", true},
		{"application/pdf", "", false},
		{"video/mp4", "", false},
	}

	for _, tt := range tests {
		ext, ok := cfg.Mime.Ext(tt.mime)
		if ok != tt.accepted {
			t.Errorf("%s: expected accepted=%v, got %v", tt.mime, tt.accepted, ok)
		}
		if ext != tt.wantExt {
			t.Errorf("%s: expected ext %q, got %q", tt.mime, tt.wantExt, ext)
		}
	}
}
