package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kozaktomas/photo-timeline/internal/database"
	"github.com/kozaktomas/photo-timeline/internal/database/postgres"
)

// PhotoReader loads single photos.
type PhotoReader interface {
	GetPhoto(ctx context.Context, id uuid.UUID) (*database.Photo, error)
}

// PhotosHandler serves individual photo endpoints.
type PhotosHandler struct {
	photos PhotoReader
	logger *slog.Logger
}

// NewPhotosHandler creates a photos handler.
func NewPhotosHandler(photos PhotoReader, logger *slog.Logger) *PhotosHandler {
	return &PhotosHandler{photos: photos, logger: logger}
}

func (h *PhotosHandler) load(w http.ResponseWriter, r *http.Request) *database.Photo {
	id, err := uuid.Parse(chi.URLParam(r, "photoID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid photo id")
		return nil
	}
	photo, err := h.photos.GetPhoto(r.Context(), id)
	if err != nil {
		if errors.Is(err, postgres.ErrNotFound) {
			respondError(w, http.StatusNotFound, "photo not found")
			return nil
		}
		h.logger.Error("load photo failed", "photo_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load photo")
		return nil
	}
	return photo
}

// Get returns a photo's metadata.
func (h *PhotosHandler) Get(w http.ResponseWriter, r *http.Request) {
	photo := h.load(w, r)
	if photo == nil {
		return
	}
	respondJSON(w, http.StatusOK, toPhotoResponse(photo))
}

// Thumbnail serves the stored preview file. 404 until the background worker
// has produced one.
func (h *PhotosHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	photo := h.load(w, r)
	if photo == nil {
		return
	}
	if photo.ThumbPath == nil {
		respondError(w, http.StatusNotFound, "thumbnail not available")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, *photo.ThumbPath)
}

type photoResponse struct {
	PhotoID         string       `json:"photo_id"`
	GroupID         string       `json:"group_id"`
	UploaderID      string       `json:"uploader_id"`
	Mime            string       `json:"mime"`
	Bytes           int64        `json:"bytes"`
	Width           int          `json:"width,omitempty"`
	Height          int          `json:"height,omitempty"`
	ShotAt          *time.Time   `json:"shot_at,omitempty"`
	GPS             *[2]float64  `json:"gps,omitempty"`
	CameraMake      *string      `json:"camera_make,omitempty"`
	CameraModel     *string      `json:"camera_model,omitempty"`
	MeetingID       *string      `json:"meeting_id,omitempty"`
	Processed       bool         `json:"processed"`
	ProcessingError *string      `json:"processing_error,omitempty"`
	UploadedAt      time.Time    `json:"uploaded_at"`
}

func toPhotoResponse(p *database.Photo) photoResponse {
	resp := photoResponse{
		PhotoID:         p.ID.String(),
		GroupID:         p.GroupID,
		UploaderID:      p.UploaderID,
		Mime:            p.Mime,
		Bytes:           p.Bytes,
		Width:           p.Width,
		Height:          p.Height,
		ShotAt:          p.ShotAt,
		CameraMake:      p.CameraMake,
		CameraModel:     p.CameraModel,
		Processed:       p.Processed,
		ProcessingError: p.ProcessingError,
		UploadedAt:      p.UploadedAt,
	}
	if p.GPS != nil {
		resp.GPS = &[2]float64{p.GPS.Lat, p.GPS.Lon}
	}
	if p.MeetingID != nil {
		id := p.MeetingID.String()
		resp.MeetingID = &id
	}
	return resp
}
