// Package classify inspects candidate files and decides their size tier,
// media kind and compressibility. Classification is a pure function over
// file metadata; it never reads bytes and never fails on unknown types.
package classify

import "strings"

// Size tier thresholds. The tier governs transfer strategy selection, not
// just UX warnings: anything at or above LargeBytes must go through the
// resumable chunk protocol because single-shot uploads of that size exceed
// typical gateway memory limits.
const (
	SmallBytes int64 = 10 << 20 // < 10 MB: small
	LargeBytes int64 = 50 << 20 // >= 50 MB: large; in between: medium
)

// DefaultMaxCompressDimension is the largest raster edge (in pixels) that
// still qualifies an image for client-side downscaling.
const DefaultMaxCompressDimension = 4096

type SizeTier string

const (
	TierSmall  SizeTier = "small"
	TierMedium SizeTier = "medium"
	TierLarge  SizeTier = "large"
)

type MediaKind string

const (
	KindImage    MediaKind = "image"
	KindVideo    MediaKind = "video"
	KindAudio    MediaKind = "audio"
	KindDocument MediaKind = "document"
)

// Input is the file metadata a classification decision is based on.
// Width and Height are optional (zero when unknown).
type Input struct {
	Name      string
	MimeType  string
	SizeBytes int64
	Width     int
	Height    int
}

// Classification is the decision for one candidate file.
type Classification struct {
	Tier SizeTier
	Kind MediaKind

	// Compressible is true only for raster images under the max dimension.
	// Video is never compressible: client-side re-encoding proved
	// unreliable and regularly inflated the payload.
	Compressible bool

	// NeedsCompressionChoice marks medium-tier raster images for which the
	// user is offered a compress-or-keep choice before upload.
	NeedsCompressionChoice bool
}

// rasterTypes are the only MIME types eligible for client-side downscaling.
var rasterTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

var documentTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"text/plain": {},
}

// Classify decides the size tier, media kind and compressibility for a file.
// maxDimension bounds the raster size still considered compressible; pass 0
// to use DefaultMaxCompressDimension.
func Classify(in Input, maxDimension int) Classification {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxCompressDimension
	}

	c := Classification{
		Tier: tierFor(in.SizeBytes),
		Kind: kindFor(in.MimeType),
	}

	if c.Kind == KindImage {
		if _, ok := rasterTypes[normalizeMime(in.MimeType)]; ok {
			withinDimension := in.Width <= maxDimension && in.Height <= maxDimension
			c.Compressible = withinDimension
			c.NeedsCompressionChoice = withinDimension && c.Tier == TierMedium
		}
	}

	return c
}

func tierFor(size int64) SizeTier {
	switch {
	case size < SmallBytes:
		return TierSmall
	case size >= LargeBytes:
		return TierLarge
	default:
		return TierMedium
	}
}

// kindFor maps a declared MIME type to a media kind using prefix matching,
// falling back to image only as a last resort.
func kindFor(mime string) MediaKind {
	m := normalizeMime(mime)

	switch {
	case strings.HasPrefix(m, "video/"):
		return KindVideo
	case strings.HasPrefix(m, "audio/"):
		return KindAudio
	case strings.HasPrefix(m, "image/"):
		return KindImage
	}

	if _, ok := documentTypes[m]; ok {
		return KindDocument
	}
	if strings.HasPrefix(m, "application/") || strings.HasPrefix(m, "text/") {
		return KindDocument
	}

	return KindImage
}

func normalizeMime(mime string) string {
	m := strings.ToLower(strings.TrimSpace(mime))
	// strip parameters such as "; charset=utf-8"
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	return m
}
