package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/kozaktomas/photo-timeline/internal/config"
)

// Client enqueues background jobs onto the shared Redis-backed queue.
type Client struct {
	client         *asynq.Client
	processTimeout time.Duration
	processRetries int
	clusterTimeout time.Duration
}

// NewClient creates an enqueue client from the Redis configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}),
		processTimeout: time.Duration(cfg.Process.JobTimeout) * time.Second,
		processRetries: cfg.Process.MaxRetries,
		clusterTimeout: time.Duration(cfg.Cluster.JobTimeout) * time.Second,
	}
}

// EnqueueProcessPhoto schedules metadata extraction for a photo on the
// default queue.
func (c *Client) EnqueueProcessPhoto(ctx context.Context, photoID uuid.UUID) error {
	payload, err := marshalPayload(ProcessPhotoPayload{PhotoID: photoID})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeProcessPhoto, payload)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(c.processRetries),
		asynq.Timeout(c.processTimeout),
	)
	if err != nil {
		return fmt.Errorf("enqueue process_photo: %w", err)
	}
	return nil
}

// EnqueueClusterJob schedules a delayed reconciliation run for a group on the
// cluster queue.
func (c *Client) EnqueueClusterJob(ctx context.Context, groupID, jobID string, retry int, delay time.Duration) error {
	payload, err := marshalPayload(ClusterGroupPayload{GroupID: groupID, JobID: jobID, Retry: retry})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeClusterGroup, payload)
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueCluster),
		asynq.ProcessIn(delay),
		asynq.Timeout(c.clusterTimeout),
	)
	if err != nil {
		return fmt.Errorf("enqueue cluster_group: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}
