package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-timeline/internal/database"
	"github.com/kozaktomas/photo-timeline/internal/ingest"
)

// maxUploadSize bounds a single upload body.
const maxUploadSize = 64 << 20 // 64 MB

// Ingestor accepts photo uploads.
type Ingestor interface {
	IngestPhoto(ctx context.Context, groupID, uploaderID string, r io.Reader, declaredMime string) (*ingest.Result, error)
}

// PhotoLister reads a group's photos.
type PhotoLister interface {
	ListGroupPhotosOrdered(ctx context.Context, groupID string) ([]database.Photo, error)
}

// MeetingLister reads a group's meetings.
type MeetingLister interface {
	ListGroupMeetings(ctx context.Context, groupID string) ([]database.Meeting, error)
}

// GroupsHandler serves the per-group endpoints.
type GroupsHandler struct {
	ingestor Ingestor
	photos   PhotoLister
	meetings MeetingLister
	logger   *slog.Logger
}

// NewGroupsHandler creates a groups handler.
func NewGroupsHandler(ingestor Ingestor, photos PhotoLister, meetings MeetingLister, logger *slog.Logger) *GroupsHandler {
	return &GroupsHandler{
		ingestor: ingestor,
		photos:   photos,
		meetings: meetings,
		logger:   logger,
	}
}

// Upload accepts one photo as multipart field "file" and answers with the
// photo id and accepted/duplicate status. Processing and clustering happen in
// the background.
func (h *GroupsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	uploaderID := r.Header.Get("X-Uploader-ID")
	if uploaderID == "" {
		respondError(w, http.StatusBadRequest, "X-Uploader-ID header is required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	mime := header.Header.Get("Content-Type")
	result, err := h.ingestor.IngestPhoto(r.Context(), groupID, uploaderID, file, mime)
	if err != nil {
		if errors.Is(err, ingest.ErrValidation) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("upload failed", "group_id", sanitizeForLog(groupID), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	status := http.StatusCreated
	if result.Status == ingest.StatusDuplicate {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

// ListPhotos returns the group's photos in timeline order.
func (h *GroupsHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	photos, err := h.photos.ListGroupPhotosOrdered(r.Context(), groupID)
	if err != nil {
		h.logger.Error("list photos failed", "group_id", sanitizeForLog(groupID), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}

	out := make([]photoResponse, len(photos))
	for i := range photos {
		out[i] = toPhotoResponse(&photos[i])
	}
	respondJSON(w, http.StatusOK, map[string]any{"photos": out})
}

// ListMeetings returns the group's meetings in timeline order.
func (h *GroupsHandler) ListMeetings(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	meetings, err := h.meetings.ListGroupMeetings(r.Context(), groupID)
	if err != nil {
		h.logger.Error("list meetings failed", "group_id", sanitizeForLog(groupID), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list meetings")
		return
	}

	out := make([]meetingResponse, len(meetings))
	for i := range meetings {
		out[i] = toMeetingResponse(&meetings[i])
	}
	respondJSON(w, http.StatusOK, map[string]any{"meetings": out})
}

type meetingResponse struct {
	MeetingID   string       `json:"meeting_id"`
	Title       string       `json:"title"`
	IsDefault   bool         `json:"is_default"`
	StartTime   *time.Time   `json:"start_time,omitempty"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
	MeetingDate string       `json:"meeting_date,omitempty"`
	PhotoCount  int          `json:"photo_count"`
	Track       [][2]float64 `json:"track,omitempty"`
	BBox        *bboxJSON    `json:"bbox,omitempty"`
}

type bboxJSON struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

func toMeetingResponse(m *database.Meeting) meetingResponse {
	resp := meetingResponse{
		MeetingID:  m.ID.String(),
		Title:      m.Title,
		IsDefault:  m.IsDefault(),
		PhotoCount: m.PhotoCount,
	}
	if !m.StartTime.IsZero() {
		start, end := m.StartTime, m.EndTime
		resp.StartTime = &start
		resp.EndTime = &end
		resp.MeetingDate = m.MeetingDate.Format("2006-01-02")
	}
	for _, p := range m.Track {
		resp.Track = append(resp.Track, [2]float64{p.Lat, p.Lon})
	}
	if m.BBox != nil {
		resp.BBox = &bboxJSON{
			MinLat: m.BBox.MinLat, MinLon: m.BBox.MinLon,
			MaxLat: m.BBox.MaxLat, MaxLon: m.BBox.MaxLon,
		}
	}
	return resp
}
