package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerEndpointAddr)
	assert.Equal(t, 3, c.UploadConcurrency)
	assert.Equal(t, int64(8<<20), c.ChunkSizeBytes)
	assert.Equal(t, 4096, c.MaxCompressDimension)
	assert.Equal(t, 2*time.Second, c.BaseRetryDelay)
	assert.Equal(t, 10*time.Minute, c.ChunkedTimeout)
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"server_endpoint_addr": "https://api.example:9000",
		"upload_concurrency":   5,
		"direct_timeout":       "45s",
	})

	t.Run("loads from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "https://api.example:9000", cfg.ServerEndpointAddr)
		assert.Equal(t, 5, cfg.UploadConcurrency)
		assert.Equal(t, 45*time.Second, cfg.DirectTimeout)
	})

	t.Run("absent fields keep defaults", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, int64(8<<20), cfg.ChunkSizeBytes)
		assert.Equal(t, 10*time.Minute, cfg.ChunkedTimeout)
	})

	t.Run("no CONFIG and no flags, no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{ServerEndpointAddr: "defaults:1234", UploadConcurrency: 42}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.ServerEndpointAddr)
		assert.Equal(t, 42, cfg.UploadConcurrency)
	})
}

func Test_parseFlags_Overrides(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin", "-a", "https://flags.example", "-w", "7"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, "https://flags.example", cfg.ServerEndpointAddr)
	assert.Equal(t, 7, cfg.UploadConcurrency)
	assert.Equal(t, "file:eras-drafts.db", cfg.DraftDBDsn, "untouched flag keeps default")
}
