// Package debounce coordinates cluster recomputation so that a burst of
// uploads yields a single reconciliation per group, run only after the burst
// quiets down. The protocol lives on three KV entries per group plus a
// delayed job: a pending key refreshed on every upload (the quiet window), a
// job key set NX so only one upload per burst schedules the job, and a
// diagnostic upload counter.
package debounce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// KV is the key-value store contract: SET EX, SET NX EX, GET, INCR, TTL
// refresh and DEL. Any store with these primitives suffices.
type KV interface {
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Scheduler enqueues a delayed cluster job. Implemented by the queue client.
type Scheduler interface {
	EnqueueClusterJob(ctx context.Context, groupID, jobID string, retry int, delay time.Duration) error
}

// Action tells a starting cluster job what to do.
type Action int

const (
	// Proceed: the quiet window elapsed (or retries are exhausted), run the
	// reconciliation now.
	Proceed Action = iota
	// Reschedule: uploads are still arriving, push the job back by the retry
	// delay.
	Reschedule
)

// Coordinator implements per-group single-flight scheduling of cluster jobs.
type Coordinator struct {
	kv          KV
	scheduler   Scheduler
	debounceTTL time.Duration
	retryDelay  time.Duration
	maxRetries  int
	logger      *slog.Logger
}

// New creates a coordinator. debounceTTL is the quiet window, retryDelay the
// delayed-job lead time, maxRetries the number of quiet-window reschedules
// before a run is forced.
func New(kv KV, scheduler Scheduler, debounceTTL, retryDelay time.Duration, maxRetries int, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		kv:          kv,
		scheduler:   scheduler,
		debounceTTL: debounceTTL,
		retryDelay:  retryDelay,
		maxRetries:  maxRetries,
		logger:      logger,
	}
}

func pendingKey(groupID string) string { return "cluster:pending:" + groupID }
func jobKey(groupID string) string     { return "cluster:job:" + groupID }
func countKey(groupID string) string   { return "cluster:count:" + groupID }

// jobKeyTTL bounds the lifetime of the job key. If a worker dies mid-flight
// the key self-clears and the next upload schedules a fresh job.
func (c *Coordinator) jobKeyTTL() time.Duration {
	return c.retryDelay + c.debounceTTL + 10*time.Second
}

// Notify records an upload for the group: it refreshes the quiet window,
// bumps the burst counter and, if no job is scheduled yet, enqueues one
// delayed cluster job. Issues four KV commands (SET EX, INCR, EXPIRE,
// SET NX) and at most one enqueue; it never waits for the job itself.
func (c *Coordinator) Notify(ctx context.Context, groupID string) error {
	if err := c.kv.SetEX(ctx, pendingKey(groupID), "1", c.debounceTTL); err != nil {
		return fmt.Errorf("set pending key: %w", err)
	}

	if _, err := c.kv.Incr(ctx, countKey(groupID)); err != nil {
		return fmt.Errorf("incr count key: %w", err)
	}
	if err := c.kv.Expire(ctx, countKey(groupID), c.debounceTTL); err != nil {
		return fmt.Errorf("expire count key: %w", err)
	}

	jobID := uuid.NewString()
	won, err := c.kv.SetNX(ctx, jobKey(groupID), jobID, c.jobKeyTTL())
	if err != nil {
		return fmt.Errorf("set job key: %w", err)
	}
	if !won {
		// An earlier upload in this burst already scheduled the job.
		return nil
	}

	if err := c.scheduler.EnqueueClusterJob(ctx, groupID, jobID, 0, c.retryDelay); err != nil {
		// Undo the claim so a later upload can schedule again; otherwise the
		// burst would wait out the job key TTL.
		if delErr := c.kv.Del(ctx, jobKey(groupID)); delErr != nil {
			c.logger.Warn("failed to release job key after enqueue failure",
				"group_id", groupID, "error", delErr)
		}
		return fmt.Errorf("enqueue cluster job: %w", err)
	}

	c.logger.Debug("scheduled cluster job", "group_id", groupID, "job_id", jobID)
	return nil
}

// OnJobStart decides whether a starting cluster job may run. While the
// pending key still exists the burst is not quiet and the job is pushed back,
// bounded by maxRetries; past that the run is forced so progress is
// guaranteed.
func (c *Coordinator) OnJobStart(ctx context.Context, groupID string, retry int) (Action, error) {
	_, pending, err := c.kv.Get(ctx, pendingKey(groupID))
	if err != nil {
		return Proceed, fmt.Errorf("get pending key: %w", err)
	}
	if pending && retry < c.maxRetries {
		return Reschedule, nil
	}
	if pending {
		c.logger.Warn("burst still active after max retries, forcing reconciliation",
			"group_id", groupID, "retries", retry)
	}
	return Proceed, nil
}

// PushBack re-enqueues the job with a fresh delay and a bumped retry count.
func (c *Coordinator) PushBack(ctx context.Context, groupID, jobID string, retry int) error {
	// Keep the job key alive across the extra delay.
	if err := c.kv.Expire(ctx, jobKey(groupID), c.jobKeyTTL()); err != nil {
		return fmt.Errorf("refresh job key: %w", err)
	}
	if err := c.scheduler.EnqueueClusterJob(ctx, groupID, jobID, retry+1, c.retryDelay); err != nil {
		return fmt.Errorf("reschedule cluster job: %w", err)
	}
	return nil
}

// Finish clears the job and counter keys after a successful reconciliation.
// Failed runs must NOT call this: the job key TTL is the self-healing path.
func (c *Coordinator) Finish(ctx context.Context, groupID string) error {
	if err := c.kv.Del(ctx, jobKey(groupID), countKey(groupID)); err != nil {
		return fmt.Errorf("delete coordination keys: %w", err)
	}
	return nil
}
