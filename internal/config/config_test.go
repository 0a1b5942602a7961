package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPerClassTimeoutFallback(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 15.0, cfg.Scheduler.PerClassTimeout("ControlMessageReceive"))
	assert.Equal(t, cfg.Scheduler.WaitTimeSeconds, cfg.Scheduler.PerClassTimeout("SomeUnknownClass"))
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sts.toml")
	contents := `
[fuzzer]
seed = 42
steps = 10

[driver]
efficient = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Fuzzer.Seed)
	assert.Equal(t, 10, cfg.Fuzzer.Steps)
	assert.True(t, cfg.Driver.Efficient)
	// Untouched defaults survive the overlay.
	assert.Equal(t, 3, cfg.Driver.NoViolationVerificationRuns)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load("/nonexistent/sts.toml")
	assert.Error(t, err)
}
