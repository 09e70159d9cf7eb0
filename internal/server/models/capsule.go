package models

import "time"

// Capsule is a finalized time capsule referencing its media records.
type Capsule struct {
	ID         string
	Title      string
	Message    string
	Theme      string
	DeliverAt  time.Time
	Recipients []string
	MediaIDs   []string
	CreatedAt  time.Time
}
