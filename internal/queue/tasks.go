// Package queue defines the background job contracts and the enqueue client.
// Two queues exist: "default" carries photo processing, "cluster" carries
// meeting reconciliation with delayed enqueue support.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	QueueDefault = "default"
	QueueCluster = "cluster"

	TypeProcessPhoto = "process_photo"
	TypeClusterGroup = "cluster_group"
)

// ProcessPhotoPayload is the payload of a process_photo job.
type ProcessPhotoPayload struct {
	PhotoID uuid.UUID `json:"photo_id"`
}

// ClusterGroupPayload is the payload of a cluster_group job. JobID is the
// opaque id stored under the group's job key; Retry counts quiet-window
// reschedules, not queue-level failure retries.
type ClusterGroupPayload struct {
	GroupID string `json:"group_id"`
	JobID   string `json:"job_id"`
	Retry   int    `json:"retry"`
}

func marshalPayload(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
