// Package exifmeta extracts shooting metadata from image files: EXIF
// timestamps, GPS coordinates, camera identity and pixel dimensions. The
// extractor does no I/O beyond reading the file; failures to parse are data,
// reported as warnings or a typed error, never panics.
package exifmeta

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"time"

	// Decoders for image.DecodeConfig.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/kozaktomas/photo-timeline/internal/database"
)

// ErrUnsupported is returned for files whose MIME type the extractor cannot
// handle at all.
var ErrUnsupported = errors.New("unsupported image type")

// exifTimeLayout is the timestamp format used by EXIF tags. EXIF carries no
// zone information; values are interpreted as UTC.
const exifTimeLayout = "2006:01:02 15:04:05"

// Extractor parses photo metadata. HEIC support depends on an external
// exiftool binary, probed once at construction.
type Extractor struct {
	heic *heicTool
}

// New creates an extractor, probing for HEIC capability.
func New() *Extractor {
	return &Extractor{heic: probeHEICTool()}
}

// SupportsHEIC reports whether HEIC/HEIF metadata extraction is available.
func (e *Extractor) SupportsHEIC() bool {
	return e.heic.available()
}

// Extract reads metadata from the file at path. Warnings carry non-fatal
// conditions (missing EXIF block, dropped invalid GPS); the returned metadata
// is valid whenever err is nil.
func (e *Extractor) Extract(path, mime string) (*database.PhotoMetadata, []string, error) {
	switch mime {
	case "image/jpeg", "image/png", "image/tiff":
		return e.extractNative(path)
	case "image/heic", "image/heif":
		return e.extractHEIC(path)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupported, mime)
	}
}

func (e *Extractor) extractNative(path string) (*database.PhotoMetadata, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	meta := &database.PhotoMetadata{}
	var warnings []string

	x, err := exif.Decode(f)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("no EXIF data: %v", err))
	} else {
		meta.ShotAt = shotAtFromExif(x)
		if meta.ShotAt == nil {
			warnings = append(warnings, "no EXIF timestamp")
		}
		gps, warn := gpsFromExif(x)
		meta.GPS = gps
		if warn != "" {
			warnings = append(warnings, warn)
		}
		meta.CameraMake = stringTag(x, exif.Make)
		meta.CameraModel = stringTag(x, exif.Model)
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil, warnings, fmt.Errorf("rewind image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("cannot decode dimensions: %v", err))
	} else {
		meta.Width = cfg.Width
		meta.Height = cfg.Height
	}

	return meta, warnings, nil
}

// shotAtFromExif resolves the shooting time: DateTimeOriginal wins, then
// DateTimeDigitized, else nil.
func shotAtFromExif(x *exif.Exif) *time.Time {
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		if ts, err := time.ParseInLocation(exifTimeLayout, raw, time.UTC); err == nil {
			return &ts
		}
	}
	return nil
}

// gpsFromExif decodes the GPS position. Out-of-range or NaN coordinates are
// dropped with a warning and treated as no GPS.
func gpsFromExif(x *exif.Exif) (*database.GPS, string) {
	lat, lon, err := x.LatLong()
	if err != nil {
		return nil, ""
	}
	if !ValidCoordinates(lat, lon) {
		return nil, fmt.Sprintf("dropping invalid GPS coordinates (%f, %f)", lat, lon)
	}
	return &database.GPS{Lat: lat, Lon: lon}, ""
}

// ValidCoordinates reports whether a latitude/longitude pair is on the globe.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return math.Abs(lat) <= 90 && math.Abs(lon) <= 180
}

func stringTag(x *exif.Exif, field exif.FieldName) *string {
	tag, err := x.Get(field)
	if err != nil {
		return nil
	}
	s, err := tag.StringVal()
	if err != nil || s == "" {
		return nil
	}
	return &s
}
