package config

import "time"

// Config holds runtime settings for the capsule-authoring client.
//
// Units: ChunkSizeBytes is bytes; BaseRetryDelay, DirectTimeout and
// ChunkedTimeout are time.Durations.
type Config struct {
	// ServerEndpointAddr is the base URL of the ingestion API.
	ServerEndpointAddr string

	// DraftDBDsn locates the local SQLite draft database.
	DraftDBDsn string

	// UploadConcurrency caps simultaneously active uploads across all
	// containers.
	UploadConcurrency int

	// ChunkSizeBytes is the append size for resumable sessions.
	ChunkSizeBytes int64

	// MaxCompressDimension is the longest-edge pixel limit above which
	// raster images are offered client-side compression.
	MaxCompressDimension int

	BaseRetryDelay time.Duration
	DirectTimeout  time.Duration
	ChunkedTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DraftDBDsn = "file:eras-drafts.db"
	c.UploadConcurrency = 3
	c.ChunkSizeBytes = 8 << 20
	c.MaxCompressDimension = 4096
	c.BaseRetryDelay = 2 * time.Second
	c.DirectTimeout = 30 * time.Second
	c.ChunkedTimeout = 10 * time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
