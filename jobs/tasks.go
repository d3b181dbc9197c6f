// Package jobs contains the background task definitions and the Asynq
// worker that runs them.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskUserSync refreshes the local mirror of the identity
	// provider's user directory.
	TaskUserSync = "idp:sync_users"
)

// UserSyncPayload records what prompted a directory sync.
type UserSyncPayload struct {
	Trigger string `json:"trigger"`
}

// NewUserSyncTask constructs an Asynq task for a directory sync.
func NewUserSyncTask(payload UserSyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskUserSync, data), nil
}
