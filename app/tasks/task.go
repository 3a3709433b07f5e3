package tasks

import (
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeSync     TaskType = "sync"
	TaskTypeSyncOnly TaskType = "sync_only"
	TaskTypeRefresh  TaskType = "refresh_token"
)

var (
	_ TaskInterface = (*SyncTask)(nil)
	_ TaskInterface = (*RefreshTokenTask)(nil)
)

type TaskInterface interface {
	GetID() string
	GetType() TaskType
	GetDestination() string
	Start()
	GetDuration() time.Duration
}

type Task struct {
	ID          string
	Type        TaskType
	Destination string
	StartedAt   *time.Time
}

func (t *Task) GetID() string {
	return t.ID
}

func (t *Task) GetType() TaskType {
	return t.Type
}

func (t *Task) GetDestination() string {
	return t.Destination
}

func (t *Task) Start() {
	now := time.Now()
	t.StartedAt = &now
}

func (t *Task) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	return time.Since(*t.StartedAt)
}

func NewTask(taskType TaskType, destination string) Task {
	return Task{
		ID:          uuid.NewString(),
		Type:        taskType,
		Destination: destination,
	}
}

// logAttrs identifies a task in log lines.
func logAttrs(t TaskInterface) []any {
	return []any{"task_id", t.GetID(), "type", string(t.GetType()), "destination", t.GetDestination()}
}
