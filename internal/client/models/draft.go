package models

import "time"

// DraftSnapshot is the serialized capsule-in-progress. Only cheaply
// serializable media fields are included, never raw bytes.
type DraftSnapshot struct {
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	Theme      string          `json:"theme"`
	DeliverAt  time.Time       `json:"deliver_at"`
	Recipients []string        `json:"recipients"`
	Media      []SnapshotMedia `json:"media"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SnapshotMedia is the lightweight, serializable view of a MediaItem.
type SnapshotMedia struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	MimeType         string      `json:"mime_type"`
	SizeBytes        int64       `json:"size_bytes"`
	URL              string      `json:"url"`
	Thumbnail        string      `json:"thumbnail,omitempty"`
	Origin           MediaOrigin `json:"origin"`
	AlreadyPersisted bool        `json:"already_persisted"`
	LinkedVaultID    string      `json:"linked_vault_id,omitempty"`
	LocalPath        string      `json:"local_path,omitempty"`
}

// ToSnapshot converts a canonical media list to its serializable form.
func ToSnapshot(items []MediaItem) []SnapshotMedia {
	out := make([]SnapshotMedia, 0, len(items))
	for _, m := range items {
		out = append(out, SnapshotMedia{
			ID:               m.ID,
			Name:             m.Name,
			MimeType:         m.MimeType,
			SizeBytes:        m.SizeBytes,
			URL:              m.URL,
			Thumbnail:        m.Thumbnail,
			Origin:           m.Origin,
			AlreadyPersisted: m.AlreadyPersisted,
			LinkedVaultID:    m.LinkedVaultID,
			LocalPath:        m.LocalPath,
		})
	}
	return out
}
