package events

import (
	"time"

	"github.com/google/uuid"
)

// Topic constants
const (
	TopicTask = "task"
)

// Event type constants
const (
	EventTypeTaskCreated       = "task.created"
	EventTypeTaskUpdated       = "task.updated"
	EventTypeTaskStatusChanged = "task.status_changed"
	EventTypeTaskDeleted       = "task.deleted"
)

// Event records one committed task mutation. Published after the
// transaction commits, so subscribers only ever see durable state.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	TaskID    int64     `json:"task_id"`
	Actor     string    `json:"actor"`
	Status    string    `json:"status,omitempty"` // set on status changes
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event with a fresh unique id and the current time.
func NewEvent(eventType string, taskID int64, actor string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TaskID:    taskID,
		Actor:     actor,
		Timestamp: time.Now(),
	}
}
