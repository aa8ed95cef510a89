package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.json"), envFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 0, cfg.MaxConcurrency)
	assert.Equal(t, time.Duration(0), cfg.Timeout.Std())
	assert.Equal(t, 300*time.Second, cfg.ShellTimeout.Std())
	assert.Equal(t, ":4180", cfg.WebhookAddr)
}

func TestLoadConfig_Layering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"log_level": "debug",
		"max_concurrency": 4,
		"timeout": "2m",
		"webhook_addr": ":9000",
		"collaborators": {"gaia.phase": "phase-tool --json"}
	}`), 0o600))

	cfg, err := loadConfig(path, envFrom(map[string]string{
		"GAIAFLOW_MAX_CONCURRENCY": "8",
		"GAIAFLOW_SHELL_TIMEOUT":   "5s",
		"GAIAFLOW_LOG_FORMAT":      "json",
	}))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, 2*time.Minute, cfg.Timeout.Std())
	assert.Equal(t, 5*time.Second, cfg.ShellTimeout.Std())
	assert.Equal(t, ":9000", cfg.WebhookAddr)
	assert.Equal(t, map[string]string{"gaia.phase": "phase-tool --json"}, cfg.Collaborators)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"timeout": 30}`), 0o600))
	_, err := loadConfig(bad, envFrom(nil))
	assert.ErrorContains(t, err, "parse")

	missing := filepath.Join(dir, "missing.json")
	_, err = loadConfig(missing, envFrom(map[string]string{"GAIAFLOW_MAX_CONCURRENCY": "-1"}))
	assert.ErrorContains(t, err, "GAIAFLOW_MAX_CONCURRENCY")

	_, err = loadConfig(missing, envFrom(map[string]string{"GAIAFLOW_TIMEOUT": "soon"}))
	assert.ErrorContains(t, err, "invalid duration")
}

func TestParseCollaborators(t *testing.T) {
	got, err := parseCollaborators("gaia.phase=phase-tool; gaia.mail = mailer --dry-run ;")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"gaia.phase": "phase-tool",
		"gaia.mail":  "mailer --dry-run",
	}, got)

	_, err = parseCollaborators("gaia.phase")
	assert.Error(t, err)
}

func TestDuration_JSON(t *testing.T) {
	d := Duration(90 * time.Second)
	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))

	var back Duration
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, d, back)
	assert.Error(t, back.UnmarshalJSON([]byte(`"-1s"`)))
}
