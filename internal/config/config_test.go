package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresSeedPath(t *testing.T) {
	_, err := Load(nil)
	require.Error(t, err)
}

func TestLoadAppliesDefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load([]string{"-config", filepath.Join(dir, "missing.json"), "seed.archipelago"})
	require.NoError(t, err)

	assert.Equal(t, "seed.archipelago", cfg.SeedPath)
	assert.False(t, cfg.LoadOnly)
	assert.Equal(t, ":38281", cfg.Addr)
	assert.Equal(t, 10, cfg.Router.HintCost)
	assert.Equal(t, 1, cfg.Router.LocationCheckPoints)
	assert.Equal(t, 256, cfg.Router.EventQueueSize)
	assert.Equal(t, "./var/state.bin", cfg.StatePath)
}

func TestLoadParsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"tags": ["hard-items"],
		"hint_cost": 20,
		"location_check_points": 2,
		"event_queue_size": 512,
		"checkpoint_interval": "5s",
		"read_timeout": "15s",
		"write_timeout": "20s",
		"state_path": "/tmp/state.bin"
	}`), 0o644))

	cfg, err := Load([]string{"-config", path, "-listen", ":9999", "-load-only", "seed.archipelago"})
	require.NoError(t, err)

	assert.Equal(t, []string{"hard-items"}, cfg.Router.Tags)
	assert.Equal(t, 20, cfg.Router.HintCost)
	assert.Equal(t, 2, cfg.Router.LocationCheckPoints)
	assert.Equal(t, 512, cfg.Router.EventQueueSize)
	assert.Equal(t, "/tmp/state.bin", cfg.StatePath)
	assert.Equal(t, ":9999", cfg.Addr)
	assert.True(t, cfg.LoadOnly)
}

func TestLoadRejectsUnknownConfigField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not_a_real_field": true}`), 0o644))

	_, err := Load([]string{"-config", path, "seed.archipelago"})
	require.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"checkpoint_interval": "not-a-duration"}`), 0o644))

	_, err := Load([]string{"-config", path, "seed.archipelago"})
	require.Error(t, err)
}

func TestLoadReadsPasswordFromEnvironment(t *testing.T) {
	t.Setenv("APRS_PASSWORD", "s3cret")
	dir := t.TempDir()

	cfg, err := Load([]string{"-config", filepath.Join(dir, "missing.json"), "seed.archipelago"})
	require.NoError(t, err)

	require.NotNil(t, cfg.Router.RequiredPassword)
	assert.Equal(t, "s3cret", *cfg.Router.RequiredPassword)
}

func TestLoadLeavesPasswordUnsetWhenEnvironmentEmpty(t *testing.T) {
	t.Setenv("APRS_PASSWORD", "")
	dir := t.TempDir()

	cfg, err := Load([]string{"-config", filepath.Join(dir, "missing.json"), "seed.archipelago"})
	require.NoError(t, err)

	assert.Nil(t, cfg.Router.RequiredPassword)
}
