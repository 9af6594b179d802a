package cluster

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-timeline/internal/database"
)

var base = time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)

func photoAt(t time.Time) database.Photo {
	shot := t
	return database.Photo{ID: uuid.New(), ShotAt: &shot}
}

func photoWithGPS(t time.Time, lat, lon float64) database.Photo {
	p := photoAt(t)
	p.GPS = &database.GPS{Lat: lat, Lon: lon}
	return p
}

func TestSplit_Empty(t *testing.T) {
	if got := Split(nil, 4*time.Hour); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	// Photos without timestamps are skipped entirely.
	if got := Split([]database.Photo{{ID: uuid.New()}}, 4*time.Hour); got != nil {
		t.Errorf("expected nil for untimed input, got %v", got)
	}
}

func TestSplit_BurstIsOneCluster(t *testing.T) {
	var photos []database.Photo
	for k := 0; k < 10; k++ {
		photos = append(photos, photoAt(base.Add(time.Duration(k)*30*time.Second)))
	}

	clusters := Split(photos, 4*time.Hour)

	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if len(c.Photos) != 10 {
		t.Errorf("expected 10 photos, got %d", len(c.Photos))
	}
	if !c.Start.Equal(base) {
		t.Errorf("expected start %v, got %v", base, c.Start)
	}
	if want := base.Add(4*time.Minute + 30*time.Second); !c.End.Equal(want) {
		t.Errorf("expected end %v, got %v", want, c.End)
	}
}

func TestSplit_DayGapMakesTwo(t *testing.T) {
	photos := []database.Photo{
		photoAt(base),
		photoAt(base.Add(24 * time.Hour)),
	}

	clusters := Split(photos, 4*time.Hour)

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	for i, c := range clusters {
		if len(c.Photos) != 1 {
			t.Errorf("cluster %d: expected 1 photo, got %d", i, len(c.Photos))
		}
	}
}

func TestSplit_GapBoundary(t *testing.T) {
	// 10:00, 10:30, 15:00 with a 4h gap: 10:30 -> 15:00 is 4.5h which exceeds
	// the gap, so two clusters.
	photos := []database.Photo{
		photoAt(base),
		photoAt(base.Add(30 * time.Minute)),
		photoAt(base.Add(5 * time.Hour)),
	}

	clusters := Split(photos, 4*time.Hour)

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if len(clusters[0].Photos) != 2 {
		t.Errorf("expected first cluster of 2, got %d", len(clusters[0].Photos))
	}
	if len(clusters[1].Photos) != 1 {
		t.Errorf("expected second cluster of 1, got %d", len(clusters[1].Photos))
	}
}

func TestSplit_GapExactlyEqualDoesNotSplit(t *testing.T) {
	photos := []database.Photo{
		photoAt(base),
		photoAt(base.Add(4 * time.Hour)),
	}

	clusters := Split(photos, 4*time.Hour)

	if len(clusters) != 1 {
		t.Fatalf("a gap equal to the threshold must not split, got %d clusters", len(clusters))
	}
}

func TestSplit_Purity(t *testing.T) {
	// For every adjacent in-cluster pair the gap is <= threshold and for
	// every cross-cluster boundary it is > threshold.
	gap := 90 * time.Minute
	offsets := []time.Duration{
		0, 10 * time.Minute, 100 * time.Minute, 105 * time.Minute,
		300 * time.Minute, 301 * time.Minute, 600 * time.Minute,
	}
	var photos []database.Photo
	for _, off := range offsets {
		photos = append(photos, photoAt(base.Add(off)))
	}

	clusters := Split(photos, gap)

	for ci, c := range clusters {
		for i := 1; i < len(c.Photos); i++ {
			d := c.Photos[i].ShotAt.Sub(*c.Photos[i-1].ShotAt)
			if d > gap {
				t.Errorf("cluster %d: in-cluster gap %v exceeds %v", ci, d, gap)
			}
		}
		if ci > 0 {
			prev := clusters[ci-1]
			if d := c.Start.Sub(prev.End); d <= gap {
				t.Errorf("boundary %d: cross-cluster gap %v not above %v", ci, d, gap)
			}
		}
	}
}

func TestSplit_TieBreakDeterministic(t *testing.T) {
	a := photoAt(base)
	b := photoAt(base)
	if a.ID.String() > b.ID.String() {
		a, b = b, a
	}

	first := Split([]database.Photo{b, a}, time.Hour)
	second := Split([]database.Photo{a, b}, time.Hour)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected single clusters, got %d and %d", len(first), len(second))
	}
	for i := range first[0].Photos {
		if first[0].Photos[i].ID != second[0].Photos[i].ID {
			t.Fatalf("member order depends on input order")
		}
	}
	if first[0].Photos[0].ID != a.ID {
		t.Errorf("equal timestamps must order by photo id")
	}
}

func TestSplit_TrackAndBBox(t *testing.T) {
	photos := []database.Photo{
		photoWithGPS(base, 50.0, 14.0),
		photoAt(base.Add(time.Minute)), // no GPS, not part of track
		photoWithGPS(base.Add(2*time.Minute), 50.2, 14.4),
		photoWithGPS(base.Add(3*time.Minute), 49.8, 14.2),
	}

	clusters := Split(photos, time.Hour)

	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if len(c.Track) != 3 {
		t.Fatalf("expected track of 3 points, got %d", len(c.Track))
	}
	if c.Track[0].Lat != 50.0 || c.Track[1].Lat != 50.2 || c.Track[2].Lat != 49.8 {
		t.Errorf("track not in shot order: %v", c.Track)
	}
	if c.BBox == nil {
		t.Fatal("expected bbox")
	}
	if c.BBox.MinLat != 49.8 || c.BBox.MaxLat != 50.2 || c.BBox.MinLon != 14.0 || c.BBox.MaxLon != 14.4 {
		t.Errorf("unexpected bbox: %+v", c.BBox)
	}
}

func TestSplit_NoGPSNoBBox(t *testing.T) {
	clusters := Split([]database.Photo{photoAt(base)}, time.Hour)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].BBox != nil {
		t.Error("expected nil bbox without GPS")
	}
	if len(clusters[0].Track) != 0 {
		t.Error("expected empty track without GPS")
	}
}

func TestSplit_Idempotent(t *testing.T) {
	var photos []database.Photo
	for k := 0; k < 20; k++ {
		photos = append(photos, photoAt(base.Add(time.Duration(k*37)*time.Minute)))
	}

	first := Split(photos, time.Hour)
	second := Split(photos, time.Hour)

	if len(first) != len(second) {
		t.Fatalf("cluster counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || !first[i].End.Equal(second[i].End) {
			t.Errorf("cluster %d bounds differ", i)
		}
		if len(first[i].Photos) != len(second[i].Photos) {
			t.Errorf("cluster %d sizes differ", i)
		}
	}
}
