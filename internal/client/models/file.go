// Package models defines client-side data models used by the Eras capsule
// authoring pipeline.
package models

// FileInfo is an opaque reference to a candidate byte source.
type FileInfo struct {
	// Name is the original file name as presented by the user.
	Name string
	// MimeType is the declared content type; may be inaccurate or empty.
	MimeType string
	// SizeBytes is the declared byte size.
	SizeBytes int64

	// Width and Height are raster dimensions when known, zero otherwise.
	Width  int
	Height int

	// LocalPath is where the bytes live on disk. Empty when the original
	// source is no longer retrievable (e.g. a restored draft whose preview
	// reference was revoked).
	LocalPath string

	// VaultID is set when the source is already durably stored server-side
	// in the user's vault; such files are candidates for server-copy.
	VaultID string

	// Token is a caller-supplied correlation token used to match a
	// completed upload back to its placeholder media item. When empty,
	// reconciliation falls back to name+size+mime matching.
	Token string
}
