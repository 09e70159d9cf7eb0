package models

import "github.com/love-developer/eras/internal/client/classify"

// TaskStatus is the lifecycle state of an upload task. Status only moves
// forward, except for the reversible uploading⇄paused transition; completed,
// failed and canceled are terminal.
type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusUploading TaskStatus = "uploading"
	StatusPaused    TaskStatus = "paused"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCanceled  TaskStatus = "canceled"
)

// Terminal reports whether no further transition is allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// ResultRef is the durable outcome of a completed upload.
type ResultRef struct {
	// MediaID is the server-assigned, durable media-record ID.
	MediaID string
	// PublicURL is the durable storage URL (possibly signed).
	PublicURL string
}

// UploadTask is one file's journey through the pipeline.
type UploadTask struct {
	// ID is opaque, client-generated and stable for the task's lifetime.
	ID string

	// Source describes the byte source being uploaded.
	Source FileInfo

	// Classification is the classifier's decision for Source.
	Classification classify.Classification

	// Strategy is the transfer strategy currently selected for the task
	// ("direct", "chunked" or "server-copy"). Retries may escalate it.
	Strategy string

	// ContainerID is the logical destination container (the capsule's
	// storage namespace). Tasks sharing a container upload sequentially.
	ContainerID string

	Status TaskStatus

	// SessionID is the resumable upload session, set once a chunked
	// transfer has been initialized. It survives pause/retry so the task
	// resumes from the server-confirmed offset instead of byte 0.
	SessionID string

	// ChunkSize is the chunk size negotiated at session init. It must be
	// reused on resume: the server's multipart parts are sized by it.
	ChunkSize int64

	ProgressBytes int64
	TotalBytes    int64

	// RetryCount counts explicit retries; MaxRetries bounds them.
	RetryCount int
	MaxRetries int

	// Result is set exactly when Status is StatusCompleted.
	Result *ResultRef

	// Thumbnail is an optional local preview reference; it may exist
	// before Result does.
	Thumbnail string

	// FailKind holds the failure taxonomy value for a failed task
	// ("network", "server-rejected", ...).
	FailKind string
	// FailMessage is a user-facing description of the last failure,
	// truncated for display.
	FailMessage string

	// Compress forces the compression path for eligible images.
	Compress bool
}
