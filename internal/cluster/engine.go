// Package cluster splits a group's photo timeline into meetings. The split is
// a pure function of its input: photos ordered by (shot_at, photo_id) are
// scanned once and a gap larger than the configured threshold starts a new
// cluster.
package cluster

import (
	"sort"
	"time"

	"github.com/kozaktomas/photo-timeline/internal/database"
)

// Cluster is one contiguous run of photos on the timeline.
type Cluster struct {
	Start  time.Time
	End    time.Time
	Photos []database.Photo
	Track  []database.GPS // GPS points of members in shot order
	BBox   *database.BBox
}

// Split partitions photos into clusters separated by more than gap. Photos
// without a timestamp must be filtered out by the caller; any present are
// skipped. The input does not need to be pre-sorted: ordering is normalized
// to (shot_at, photo_id) so equal timestamps split deterministically.
func Split(photos []database.Photo, gap time.Duration) []Cluster {
	timed := make([]database.Photo, 0, len(photos))
	for _, p := range photos {
		if p.ShotAt != nil {
			timed = append(timed, p)
		}
	}
	if len(timed) == 0 {
		return nil
	}

	sort.SliceStable(timed, func(i, j int) bool {
		a, b := *timed[i].ShotAt, *timed[j].ShotAt
		if a.Equal(b) {
			return timed[i].ID.String() < timed[j].ID.String()
		}
		return a.Before(b)
	})

	var clusters []Cluster
	current := newCluster(timed[0])
	for _, p := range timed[1:] {
		if p.ShotAt.Sub(current.End) > gap {
			clusters = append(clusters, current)
			current = newCluster(p)
			continue
		}
		current.append(p)
	}
	clusters = append(clusters, current)
	return clusters
}

func newCluster(p database.Photo) Cluster {
	c := Cluster{Start: *p.ShotAt, End: *p.ShotAt}
	c.append(p)
	return c
}

func (c *Cluster) append(p database.Photo) {
	c.Photos = append(c.Photos, p)
	c.End = *p.ShotAt
	if p.GPS == nil {
		return
	}
	c.Track = append(c.Track, *p.GPS)
	if c.BBox == nil {
		c.BBox = &database.BBox{
			MinLat: p.GPS.Lat, MaxLat: p.GPS.Lat,
			MinLon: p.GPS.Lon, MaxLon: p.GPS.Lon,
		}
		return
	}
	c.BBox.Extend(*p.GPS)
}
