package postgres

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/kozaktomas/photo-timeline/internal/database"
)

// Geospatial column adapters for the native PostgreSQL point, path and box
// types. Points are stored as (lon, lat) following the x=longitude
// convention.

// Point maps a nullable GPS coordinate onto a point column.
type Point struct {
	GPS *database.GPS
}

func (p Point) Value() (driver.Value, error) {
	if p.GPS == nil {
		return nil, nil
	}
	return fmt.Sprintf("(%g,%g)", p.GPS.Lon, p.GPS.Lat), nil
}

func (p *Point) Scan(src any) error {
	if src == nil {
		p.GPS = nil
		return nil
	}
	s, err := geoText(src)
	if err != nil {
		return err
	}
	lon, lat, err := parsePointText(s)
	if err != nil {
		return err
	}
	p.GPS = &database.GPS{Lat: lat, Lon: lon}
	return nil
}

// Path maps an ordered GPS track onto a path column. An empty track stores
// NULL.
type Path struct {
	Track []database.GPS
}

func (p Path) Value() (driver.Value, error) {
	if len(p.Track) == 0 {
		return nil, nil
	}
	points := make([]string, len(p.Track))
	for i, g := range p.Track {
		points[i] = fmt.Sprintf("(%g,%g)", g.Lon, g.Lat)
	}
	// Square brackets mark an open path.
	return "[" + strings.Join(points, ",") + "]", nil
}

func (p *Path) Scan(src any) error {
	if src == nil {
		p.Track = nil
		return nil
	}
	s, err := geoText(src)
	if err != nil {
		return err
	}
	s = strings.Trim(s, "[]()")
	parts := strings.Split(s, "),(")
	track := make([]database.GPS, 0, len(parts))
	for _, part := range parts {
		lon, lat, err := parsePointText(part)
		if err != nil {
			return fmt.Errorf("parse path element %q: %w", part, err)
		}
		track = append(track, database.GPS{Lat: lat, Lon: lon})
	}
	p.Track = track
	return nil
}

// Box maps a nullable bounding box onto a box column.
type Box struct {
	BBox *database.BBox
}

func (b Box) Value() (driver.Value, error) {
	if b.BBox == nil {
		return nil, nil
	}
	return fmt.Sprintf("((%g,%g),(%g,%g))",
		b.BBox.MaxLon, b.BBox.MaxLat, b.BBox.MinLon, b.BBox.MinLat), nil
}

func (b *Box) Scan(src any) error {
	if src == nil {
		b.BBox = nil
		return nil
	}
	s, err := geoText(src)
	if err != nil {
		return err
	}
	s = strings.Trim(s, "()")
	parts := strings.Split(s, "),(")
	if len(parts) != 2 {
		return fmt.Errorf("malformed box %q", s)
	}
	lon1, lat1, err := parsePointText(parts[0])
	if err != nil {
		return err
	}
	lon2, lat2, err := parsePointText(parts[1])
	if err != nil {
		return err
	}
	b.BBox = &database.BBox{
		MinLat: min(lat1, lat2), MaxLat: max(lat1, lat2),
		MinLon: min(lon1, lon2), MaxLon: max(lon1, lon2),
	}
	return nil
}

func geoText(src any) (string, error) {
	switch v := src.(type) {
	case []byte:
		return string(v), nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("unexpected geometry type %T", src)
	}
}

func parsePointText(s string) (lon, lat float64, err error) {
	s = strings.Trim(s, "()")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed point %q", s)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse longitude: %w", err)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse latitude: %w", err)
	}
	return lon, lat, nil
}
