package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kozaktomas/photo-timeline/internal/config"
	"github.com/kozaktomas/photo-timeline/internal/database"
	"github.com/kozaktomas/photo-timeline/internal/exifmeta"
	"github.com/kozaktomas/photo-timeline/internal/queue"
	"github.com/kozaktomas/photo-timeline/internal/storage"
	"github.com/kozaktomas/photo-timeline/internal/thumbnail"
)

// Handler processes photo and cluster jobs.
type Handler struct {
	photos      PhotoStore
	meetings    MeetingStore
	store       *storage.Store
	extractor   *exifmeta.Extractor
	thumbs      *thumbnail.Maker
	coordinator Coordinator
	gap         time.Duration
	logger      *slog.Logger
}

// Deps holds the handler's dependencies.
type Deps struct {
	Photos      PhotoStore
	Meetings    MeetingStore
	Store       *storage.Store
	Extractor   *exifmeta.Extractor
	Thumbs      *thumbnail.Maker
	Coordinator Coordinator
	Cluster     config.ClusterConfig
	Logger      *slog.Logger
}

// New creates a job handler.
func New(deps Deps) *Handler {
	return &Handler{
		photos:      deps.Photos,
		meetings:    deps.Meetings,
		store:       deps.Store,
		extractor:   deps.Extractor,
		thumbs:      deps.Thumbs,
		coordinator: deps.Coordinator,
		gap:         deps.Cluster.Gap(),
		logger:      deps.Logger,
	}
}

// HandleProcessPhoto extracts metadata and a thumbnail for one photo, then
// notifies the debounce coordinator. Transient failures are retried by the
// queue; once retries are exhausted the error is recorded on the row and the
// photo stays visible with null metadata.
func (h *Handler) HandleProcessPhoto(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPhotoPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	log := h.logger.With("photo_id", payload.PhotoID)

	photo, err := h.photos.GetPhoto(ctx, payload.PhotoID)
	if err != nil {
		if isNotFound(err) {
			log.Warn("photo row gone, dropping job")
			return nil
		}
		return h.retryOrGiveUp(ctx, log, payload, "", fmt.Errorf("load photo: %w", err))
	}
	if photo.Processed {
		log.Info("photo already processed")
		return nil
	}

	meta, warnings, err := h.extractor.Extract(photo.OriginalPath, photo.Mime)
	if err != nil {
		if errors.Is(err, exifmeta.ErrUnsupported) {
			// Permanent: record and move on. The photo routes to the
			// default meeting.
			return h.giveUp(ctx, log, payload, photo.GroupID, err)
		}
		return h.retryOrGiveUp(ctx, log, payload, photo.GroupID, fmt.Errorf("extract metadata: %w", err))
	}
	for _, w := range warnings {
		log.Warn("metadata extraction", "warning", w)
	}

	thumbPath := h.makeThumbnail(photo, log)

	if err := h.photos.UpdatePhotoMetadata(ctx, photo.ID, meta, thumbPath); err != nil {
		return h.retryOrGiveUp(ctx, log, payload, photo.GroupID, fmt.Errorf("store metadata: %w", err))
	}
	log.Info("photo processed", "has_timestamp", meta.ShotAt != nil, "has_gps", meta.GPS != nil)

	if err := h.coordinator.Notify(ctx, photo.GroupID); err != nil {
		// The row is already final; a later upload re-triggers clustering
		// and the job key TTL heals a wedged scheduler.
		log.Warn("cluster notify failed", "error", err)
		return fmt.Errorf("notify coordinator: %w", err)
	}
	return nil
}

// makeThumbnail renders and stores the preview. Best effort: any failure
// leaves thumb_path null.
func (h *Handler) makeThumbnail(photo *database.Photo, log *slog.Logger) *string {
	buf, err := h.thumbs.Render(photo.OriginalPath)
	if err != nil {
		log.Warn("thumbnail generation failed", "error", err)
		return nil
	}
	path, _, err := h.store.Write(storage.KindThumb, photo.ContentHash, "jpg", buf)
	if err != nil {
		log.Warn("thumbnail write failed", "error", err)
		return nil
	}
	return &path
}

// retryOrGiveUp returns the error while queue retries remain, otherwise
// records a permanent failure.
func (h *Handler) retryOrGiveUp(ctx context.Context, log *slog.Logger, payload queue.ProcessPhotoPayload, groupID string, err error) error {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if retried < maxRetry {
		log.Warn("processing failed, will retry", "attempt", retried, "error", err)
		return err
	}
	return h.giveUp(ctx, log, payload, groupID, err)
}

// giveUp records the failure on the row; the photo becomes processed with
// null metadata so it stays visible in the default meeting.
func (h *Handler) giveUp(ctx context.Context, log *slog.Logger, payload queue.ProcessPhotoPayload, groupID string, cause error) error {
	log.Error("processing failed permanently", "error", cause)
	if err := h.photos.MarkProcessingFailed(ctx, payload.PhotoID, cause.Error()); err != nil {
		return fmt.Errorf("record processing failure: %w", err)
	}
	if groupID != "" {
		if err := h.coordinator.Notify(ctx, groupID); err != nil {
			log.Warn("cluster notify failed", "error", err)
		}
	}
	return nil
}
