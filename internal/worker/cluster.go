package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/kozaktomas/photo-timeline/internal/cluster"
	"github.com/kozaktomas/photo-timeline/internal/database"
	"github.com/kozaktomas/photo-timeline/internal/database/postgres"
	"github.com/kozaktomas/photo-timeline/internal/debounce"
	"github.com/kozaktomas/photo-timeline/internal/queue"
)

func isNotFound(err error) bool {
	return errors.Is(err, postgres.ErrNotFound)
}

// HandleClusterGroup reconciles a group's meetings. While the upload burst is
// still active the job is pushed back; once quiet (or after the reschedule
// budget), the group's photos are re-clustered and the meeting set rewritten
// under the group's advisory lock. The coordination keys are cleared only on
// success; on failure their TTL is the recovery path.
func (h *Handler) HandleClusterGroup(ctx context.Context, task *asynq.Task) error {
	var payload queue.ClusterGroupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	log := h.logger.With("group_id", payload.GroupID, "job_id", payload.JobID)

	action, err := h.coordinator.OnJobStart(ctx, payload.GroupID, payload.Retry)
	if err != nil {
		return fmt.Errorf("check quiet window: %w", err)
	}
	if action == debounce.Reschedule {
		log.Info("burst still active, pushing job back", "retry", payload.Retry)
		if err := h.coordinator.PushBack(ctx, payload.GroupID, payload.JobID, payload.Retry); err != nil {
			return fmt.Errorf("push back cluster job: %w", err)
		}
		return nil
	}

	if err := h.reconcileGroup(ctx, payload.GroupID); err != nil {
		return fmt.Errorf("reconcile group %s: %w", payload.GroupID, err)
	}

	if err := h.coordinator.Finish(ctx, payload.GroupID); err != nil {
		// Reconciliation committed; a dangling job key only delays the next
		// burst until its TTL.
		log.Warn("failed to clear coordination keys", "error", err)
	}
	log.Info("group reconciled")
	return nil
}

// reconcileGroup snapshots the group's photos, splits the timed ones into
// clusters and rewrites the meeting set.
func (h *Handler) reconcileGroup(ctx context.Context, groupID string) error {
	photos, err := h.photos.ListGroupPhotosOrdered(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list photos: %w", err)
	}

	var timed []database.Photo
	var untimed []uuid.UUID
	for _, p := range photos {
		if p.ShotAt == nil {
			untimed = append(untimed, p.ID)
		} else {
			timed = append(timed, p)
		}
	}

	clusters := cluster.Split(timed, h.gap)
	return h.meetings.ReconcileMeetings(ctx, groupID, clusters, untimed)
}
