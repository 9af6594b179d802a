// Package worker consumes background jobs: photo processing on the default
// queue and meeting reconciliation on the cluster queue.
package worker

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/kozaktomas/photo-timeline/internal/cluster"
	"github.com/kozaktomas/photo-timeline/internal/config"
	"github.com/kozaktomas/photo-timeline/internal/database"
	"github.com/kozaktomas/photo-timeline/internal/debounce"
	"github.com/kozaktomas/photo-timeline/internal/queue"
)

// PhotoStore is the photo persistence the workers need.
type PhotoStore interface {
	GetPhoto(ctx context.Context, id uuid.UUID) (*database.Photo, error)
	UpdatePhotoMetadata(ctx context.Context, id uuid.UUID, meta *database.PhotoMetadata, thumbPath *string) error
	MarkProcessingFailed(ctx context.Context, id uuid.UUID, message string) error
	ListGroupPhotosOrdered(ctx context.Context, groupID string) ([]database.Photo, error)
}

// MeetingStore is the meeting persistence the cluster worker needs.
type MeetingStore interface {
	ReconcileMeetings(ctx context.Context, groupID string, clusters []cluster.Cluster, untimed []uuid.UUID) error
}

// Coordinator is the debounce protocol surface the workers drive.
type Coordinator interface {
	Notify(ctx context.Context, groupID string) error
	OnJobStart(ctx context.Context, groupID string, retry int) (debounce.Action, error)
	PushBack(ctx context.Context, groupID, jobID string, retry int) error
	Finish(ctx context.Context, groupID string) error
}

// NewServer builds the asynq worker server consuming both queues. The server
// runs cfg.Process.Workers+1 handlers in total and polls the default and
// cluster queues with priority weights cfg.Process.Workers and 1; the weights
// do not cap either queue's share of the handlers. Per-group serialization of
// reconciliations comes from the advisory lock.
func NewServer(cfg *config.Config, h *Handler, logger *slog.Logger) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Process.Workers + 1,
			Queues: map[string]int{
				queue.QueueDefault: cfg.Process.Workers,
				queue.QueueCluster: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("job failed", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeProcessPhoto, h.HandleProcessPhoto)
	mux.HandleFunc(queue.TypeClusterGroup, h.HandleClusterGroup)
	return srv, mux
}
