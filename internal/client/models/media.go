package models

import (
	"net/url"
	"strings"
)

// MediaOrigin says how a media item entered the capsule.
type MediaOrigin string

const (
	OriginRecorded    MediaOrigin = "recorded"
	OriginUploaded    MediaOrigin = "uploaded"
	OriginVaultCopy   MediaOrigin = "vault-copy"
	OriginPreExisting MediaOrigin = "pre-existing"
)

// MediaItem is an entry in the canonical media list of a capsule.
type MediaItem struct {
	// ID is either a durable server ID (authoritative) or a temporary
	// client ID while the upload is in flight.
	ID string

	Origin MediaOrigin

	URL       string
	MimeType  string
	SizeBytes int64
	Thumbnail string

	// Name is the original file name; together with size and mime it is
	// the fallback identity when no correlation token was supplied.
	Name string

	// Token is the correlation token carried over from the enqueue call.
	Token string

	// LocalPath is the on-device source for local-origin items. It is
	// metadata only: raw bytes are never serialized with the item.
	LocalPath string

	// Uploading marks a placeholder standing in for an in-flight upload.
	Uploading bool

	// AlreadyPersisted is true once the item is confirmed durably stored
	// and linked to a capsule or draft.
	AlreadyPersisted bool

	// NonReuploadable marks restored items whose original bytes are gone;
	// they render as already uploaded and are never re-enqueued.
	NonReuploadable bool

	// LinkedVaultID is a back-reference to a vault-origin item. Relation
	// only: once AlreadyPersisted is true, deleting the vault item must
	// not cascade here.
	LinkedVaultID string

	// ReplacesID links an "enhanced" derivative to the item it replaces.
	ReplacesID string
}

// BaseURL returns u stripped of its query and fragment. List identity is
// URL-content-based: the same stored object may be re-fetched under a
// refreshed signed URL, so transient query parameters never count.
func BaseURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil {
		// fall back to manual trimming for unparseable values
		if i := strings.IndexByte(u, '?'); i >= 0 {
			return u[:i]
		}
		return u
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}

// SameStoredObject reports whether two URLs point at the same stored object,
// ignoring transient query parameters such as signed-URL expiry tokens.
func SameStoredObject(a, b string) bool {
	return a != "" && BaseURL(a) == BaseURL(b)
}
