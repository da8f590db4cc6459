package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "applications", cfg.Storage.Folder)
	assert.Equal(t, int64(5*1024*1024), cfg.Storage.MaxImageBytes)
	assert.Equal(t, int64(10*1024*1024), cfg.Storage.MaxDocumentBytes)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 3, cfg.Lifecycle.MaxRetries)
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("server:\n  addr: 0.0.0.0:9000\nlifecycle:\n  max_retries: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/v1", cfg.Server.BasePath)
	assert.Equal(t, 5, cfg.Lifecycle.MaxRetries)
}

func TestFromYAMLRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "server: [",
		"zero retries":   "lifecycle:\n  max_retries: 0\n",
		"no folder":      "storage:\n  folder: \"\"\n",
		"bad log format": "log:\n  format: xml\n",
		"sweeper grace":  "sweeper:\n  enabled: true\n  grace: 0s\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "jobboard.yml"), []byte("server:\n  base_path: /api\n"), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, "/api", cfg.Server.BasePath)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}
