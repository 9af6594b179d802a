// Package ingest implements the synchronous upload path: hash the bytes,
// place the original in storage, insert the row and hand the rest to the
// background pipeline. The caller gets an answer as soon as the photo is
// durable; extraction and clustering never block an upload.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/kozaktomas/photo-timeline/internal/config"
	"github.com/kozaktomas/photo-timeline/internal/database"
	"github.com/kozaktomas/photo-timeline/internal/storage"
)

// ErrValidation marks bad input surfaced synchronously to the uploader.
var ErrValidation = errors.New("validation error")

// Upload outcome statuses.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

// Result is the synchronous answer to an upload.
type Result struct {
	PhotoID uuid.UUID `json:"photo_id"`
	Status  string    `json:"status"`
}

// PhotoInserter is the persistence surface ingest needs.
type PhotoInserter interface {
	InsertPhotoIfAbsent(ctx context.Context, photo *database.Photo) (*database.Photo, bool, error)
}

// Enqueuer schedules background processing.
type Enqueuer interface {
	EnqueueProcessPhoto(ctx context.Context, photoID uuid.UUID) error
}

// Notifier feeds the debounce coordinator.
type Notifier interface {
	Notify(ctx context.Context, groupID string) error
}

// Service accepts photo uploads.
type Service struct {
	photos   PhotoInserter
	store    *storage.Store
	queue    Enqueuer
	notifier Notifier
	mime     config.MimeConfig
	logger   *slog.Logger
}

// New creates an ingest service.
func New(photos PhotoInserter, store *storage.Store, queue Enqueuer, notifier Notifier, mime config.MimeConfig, logger *slog.Logger) *Service {
	return &Service{
		photos:   photos,
		store:    store,
		queue:    queue,
		notifier: notifier,
		mime:     mime,
		logger:   logger,
	}
}

// IngestPhoto stores an upload and schedules its processing. Re-uploading
// identical bytes into the same group returns the existing photo with status
// duplicate and schedules nothing.
func (s *Service) IngestPhoto(ctx context.Context, groupID, uploaderID string, r io.Reader, declaredMime string) (*Result, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: group id is required", ErrValidation)
	}
	ext, ok := s.mime.Ext(declaredMime)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported mime type %q", ErrValidation, declaredMime)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrValidation)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	path, _, err := s.store.Write(storage.KindOriginal, hash, ext, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("store original: %w", err)
	}

	photo := &database.Photo{
		ID:           uuid.New(),
		GroupID:      groupID,
		UploaderID:   uploaderID,
		ContentHash:  hash,
		OriginalPath: path,
		Mime:         declaredMime,
		Bytes:        int64(len(data)),
	}
	stored, inserted, err := s.photos.InsertPhotoIfAbsent(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("insert photo: %w", err)
	}
	if !inserted {
		s.logger.Info("duplicate upload", "group_id", groupID, "photo_id", stored.ID)
		return &Result{PhotoID: stored.ID, Status: StatusDuplicate}, nil
	}

	if err := s.queue.EnqueueProcessPhoto(ctx, stored.ID); err != nil {
		return nil, fmt.Errorf("enqueue processing: %w", err)
	}

	if err := s.notifier.Notify(ctx, groupID); err != nil {
		// The process worker notifies again after extraction, so a failed
		// notify here only delays clustering.
		s.logger.Warn("cluster notify failed", "group_id", groupID, "error", err)
	}

	s.logger.Info("photo accepted", "group_id", groupID, "photo_id", stored.ID, "bytes", len(data))
	return &Result{PhotoID: stored.ID, Status: StatusAccepted}, nil
}
