package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/love-developer/eras/internal/flagx"
	"github.com/love-developer/eras/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "30s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerEndpointAddr   string         `json:"server_endpoint_addr"`
	DraftDBDsn           string         `json:"draft_db_dsn"`
	UploadConcurrency    int            `json:"upload_concurrency"`
	ChunkSizeBytes       int64          `json:"chunk_size_bytes"`
	MaxCompressDimension int            `json:"max_compress_dimension"`
	BaseRetryDelay       timex.Duration `json:"base_retry_delay"`
	DirectTimeout        timex.Duration `json:"direct_timeout"`
	ChunkedTimeout       timex.Duration `json:"chunked_timeout"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Only fields present (non-zero) in the JSON override the current value.
// Panics on read or unmarshal errors (caller should recover if desired).
//
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DraftDBDsn != "" {
		cfg.DraftDBDsn = jc.DraftDBDsn
	}
	if jc.UploadConcurrency > 0 {
		cfg.UploadConcurrency = jc.UploadConcurrency
	}
	if jc.ChunkSizeBytes > 0 {
		cfg.ChunkSizeBytes = jc.ChunkSizeBytes
	}
	if jc.MaxCompressDimension > 0 {
		cfg.MaxCompressDimension = jc.MaxCompressDimension
	}
	if jc.BaseRetryDelay.Duration > 0 {
		cfg.BaseRetryDelay = time.Duration(jc.BaseRetryDelay.Duration)
	}
	if jc.DirectTimeout.Duration > 0 {
		cfg.DirectTimeout = time.Duration(jc.DirectTimeout.Duration)
	}
	if jc.ChunkedTimeout.Duration > 0 {
		cfg.ChunkedTimeout = time.Duration(jc.ChunkedTimeout.Duration)
	}
}
