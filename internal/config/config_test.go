package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kallerud/driftscan/internal/errors"
	"github.com/kallerud/driftscan/internal/logging"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultPorts, cfg.Scan.Ports)
	assert.Equal(t, 1*time.Second, cfg.Scan.ProbeTimeout)
	assert.Equal(t, 100, cfg.Scan.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Scan.WaitWindow)
	assert.Equal(t, "scan", cfg.Output.Prefix)
	assert.True(t, cfg.Output.CSV)
	assert.False(t, cfg.History.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "driftscan.yaml")
		content := `
scan:
  network: 192.168.1.0/24
  ports: "22,443"
  concurrency: 10
output:
  prefix: nightly
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "192.168.1.0/24", cfg.Scan.Network)
		assert.Equal(t, "22,443", cfg.Scan.Ports)
		assert.Equal(t, 10, cfg.Scan.Concurrency)
		assert.Equal(t, "nightly", cfg.Output.Prefix)
		// Untouched fields keep their defaults.
		assert.Equal(t, DefaultProbeTimeout, cfg.Scan.ProbeTimeout)
	})

	t.Run("malformed YAML is a configuration error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("scan: ["), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeConfiguration))
	})

	t.Run("invalid values fail validation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.yaml")
		require.NoError(t, os.WriteFile(path, []byte("scan:\n  concurrency: -1\n"), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.CodeValidation))
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects zero probe timeout", func(t *testing.T) {
		cfg := Default()
		cfg.Scan.ProbeTimeout = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects empty ports", func(t *testing.T) {
		cfg := Default()
		cfg.Scan.Ports = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = logging.LogLevel("loud")
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects enabled history without a path", func(t *testing.T) {
		cfg := Default()
		cfg.History.Enabled = true
		cfg.History.Path = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "driftscan.yaml")

	cfg := Default()
	cfg.Scan.Network = "10.0.0.0/24"
	cfg.History.Enabled = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestHistoryEnabled(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.HistoryEnabled())

	cfg.History.Enabled = true
	assert.True(t, cfg.HistoryEnabled())

	cfg.History.Path = ""
	assert.False(t, cfg.HistoryEnabled())
}
