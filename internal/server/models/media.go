package models

import "time"

// MediaStatus tracks a media record's lifecycle.
type MediaStatus string

const (
	// MediaPending marks a record whose bytes are still arriving (a
	// resumable session in progress).
	MediaPending MediaStatus = "pending"
	// MediaReady marks a durably stored record.
	MediaReady MediaStatus = "ready"
)

// MediaRecord is one durably tracked media object.
type MediaRecord struct {
	ID          string
	ContainerID string
	Name        string
	MimeType    string
	SizeBytes   int64
	StorageKey  string
	PublicURL   string
	Status      MediaStatus
	CreatedAt   time.Time
}
