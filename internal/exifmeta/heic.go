package exifmeta

import (
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/barasher/go-exiftool"

	"github.com/kozaktomas/photo-timeline/internal/database"
)

// ErrHEICUnavailable is returned for HEIC files when no exiftool binary is
// present on the host.
var ErrHEICUnavailable = fmt.Errorf("%w: HEIC requires the exiftool binary", ErrUnsupported)

// heicTool wraps the external exiftool binary. The binary is probed at
// construction; the long-running exiftool process is started lazily on first
// use and reused afterwards.
type heicTool struct {
	found bool

	once sync.Once
	et   *exiftool.Exiftool
	err  error
}

func probeHEICTool() *heicTool {
	_, err := exec.LookPath("exiftool")
	return &heicTool{found: err == nil}
}

func (h *heicTool) available() bool {
	return h.found
}

func (h *heicTool) tool() (*exiftool.Exiftool, error) {
	h.once.Do(func() {
		h.et, h.err = exiftool.NewExiftool(exiftool.CoordFormant("%+.6f"))
	})
	return h.et, h.err
}

func (e *Extractor) extractHEIC(path string) (*database.PhotoMetadata, []string, error) {
	if !e.heic.available() {
		return nil, nil, ErrHEICUnavailable
	}
	et, err := e.heic.tool()
	if err != nil {
		return nil, nil, fmt.Errorf("start exiftool: %w", err)
	}

	fms := et.ExtractMetadata(path)
	if len(fms) == 0 {
		return nil, nil, fmt.Errorf("exiftool returned no result for %s", path)
	}
	fm := fms[0]
	if fm.Err != nil {
		return nil, nil, fmt.Errorf("exiftool: %w", fm.Err)
	}

	meta := &database.PhotoMetadata{}
	var warnings []string

	meta.ShotAt = heicShotAt(fm)
	if meta.ShotAt == nil {
		warnings = append(warnings, "no EXIF timestamp")
	}

	if lat, latErr := fm.GetFloat("GPSLatitude"); latErr == nil {
		if lon, lonErr := fm.GetFloat("GPSLongitude"); lonErr == nil {
			if ValidCoordinates(lat, lon) {
				meta.GPS = &database.GPS{Lat: lat, Lon: lon}
			} else {
				warnings = append(warnings, fmt.Sprintf("dropping invalid GPS coordinates (%f, %f)", lat, lon))
			}
		}
	}

	if w, err := fm.GetInt("ImageWidth"); err == nil {
		meta.Width = int(w)
	}
	if h, err := fm.GetInt("ImageHeight"); err == nil {
		meta.Height = int(h)
	}
	if mk, err := fm.GetString("Make"); err == nil && mk != "" {
		meta.CameraMake = &mk
	}
	if model, err := fm.GetString("Model"); err == nil && model != "" {
		meta.CameraModel = &model
	}

	return meta, warnings, nil
}

func heicShotAt(fm exiftool.FileMetadata) *time.Time {
	for _, field := range []string{"DateTimeOriginal", "CreateDate"} {
		raw, err := fm.GetString(field)
		if err != nil {
			continue
		}
		if ts, err := time.ParseInLocation(exifTimeLayout, raw, time.UTC); err == nil {
			return &ts
		}
	}
	return nil
}
