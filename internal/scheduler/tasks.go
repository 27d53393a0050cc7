package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskDebugLogArchive = "debuglog.archive"

const TaskDebugLogCleanup = "debuglog.cleanup"

// DebugLogArchivePayload names a written debug log entry to copy to object
// storage.
type DebugLogArchivePayload struct {
	Path            string `json:"path"`
	OriginName      string `json:"originName"`
	DestinationName string `json:"destinationName"`
	Routes          int    `json:"routes"`
}

// DebugLogCleanupPayload carries the retention horizon in seconds. Zero uses
// the store's configured horizon.
type DebugLogCleanupPayload struct {
	MaxAgeSeconds int64 `json:"maxAgeSeconds"`
}

// MaxAge returns the horizon as a duration.
func (p DebugLogCleanupPayload) MaxAge() time.Duration {
	return time.Duration(p.MaxAgeSeconds) * time.Second
}

func NewDebugLogArchiveTask(payload DebugLogArchivePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDebugLogArchive, data), nil
}

func ParseDebugLogArchivePayload(task *asynq.Task) (DebugLogArchivePayload, error) {
	var payload DebugLogArchivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DebugLogArchivePayload{}, err
	}
	return payload, nil
}

func NewDebugLogCleanupTask(payload DebugLogCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDebugLogCleanup, data), nil
}

func ParseDebugLogCleanupPayload(task *asynq.Task) (DebugLogCleanupPayload, error) {
	var payload DebugLogCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DebugLogCleanupPayload{}, err
	}
	return payload, nil
}
