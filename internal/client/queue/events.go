package queue

import "github.com/love-developer/eras/internal/client/models"

// EventType labels a queue event.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventPaused    EventType = "paused"
	EventResumed   EventType = "resumed"
	EventRetrying  EventType = "retrying"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCanceled  EventType = "canceled"
)

// Event is one record on the queue's multiplexed stream. Task is a snapshot
// taken at emission time; consumers never share memory with the queue.
type Event struct {
	TaskID string
	Type   EventType
	Task   models.UploadTask
}
