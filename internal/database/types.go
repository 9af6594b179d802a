package database

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMeetingTitle is the sentinel title of the per-group catch-all meeting
// that owns photos without a timestamp. It must never be used for any other
// meeting.
const DefaultMeetingTitle = "Default Meeting"

// GPS is a WGS84 coordinate pair decoded from EXIF.
type GPS struct {
	Lat float64
	Lon float64
}

// BBox is the minimal bounding box around a set of GPS points.
type BBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Extend grows the box to include p.
func (b *BBox) Extend(p GPS) {
	if p.Lat < b.MinLat {
		b.MinLat = p.Lat
	}
	if p.Lat > b.MaxLat {
		b.MaxLat = p.Lat
	}
	if p.Lon < b.MinLon {
		b.MinLon = p.Lon
	}
	if p.Lon > b.MaxLon {
		b.MaxLon = p.Lon
	}
}

// Photo is a stored photo row. Created by ingest with Processed=false and
// MeetingID=nil, filled in once by the process worker and reassigned to
// meetings by the cluster worker.
type Photo struct {
	ID              uuid.UUID
	GroupID         string
	UploaderID      string
	ContentHash     string
	OriginalPath    string
	ThumbPath       *string
	Mime            string
	Bytes           int64
	Width           int
	Height          int
	ShotAt          *time.Time
	GPS             *GPS
	CameraMake      *string
	CameraModel     *string
	MeetingID       *uuid.UUID
	Processed       bool
	ProcessingError *string
	UploadedAt      time.Time
}

// Meeting is a temporal cluster of photos within a single group. Its time
// bounds, count, track and bbox are derived from member photos and maintained
// exclusively by meeting reconciliation.
type Meeting struct {
	ID          uuid.UUID
	GroupID     string
	Title       string
	StartTime   time.Time
	EndTime     time.Time
	MeetingDate time.Time // local date of StartTime
	PhotoCount  int
	Track       []GPS
	BBox        *BBox
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsDefault reports whether the meeting is the group's catch-all for photos
// without a timestamp.
func (m *Meeting) IsDefault() bool {
	return m.Title == DefaultMeetingTitle
}

// PhotoMetadata is the closed record produced by EXIF extraction. Unknown
// tags are dropped at the extractor.
type PhotoMetadata struct {
	ShotAt      *time.Time
	GPS         *GPS
	Width       int
	Height      int
	CameraMake  *string
	CameraModel *string
}
