package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 150.0, cfg.Geofence.RadiusM)
	assert.Equal(t, 30*time.Second, cfg.Geofence.Cooldown)
	assert.Equal(t, 5*time.Second, cfg.Geofence.WatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.Geofence.WatchMaxAge)
	assert.Equal(t, "redis", cfg.Geofence.Guard)
	assert.Equal(t, 6*time.Hour, cfg.Presence.StaleAfter)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PICKLEHEART_GEOFENCE_COOLDOWN", "45s")
	t.Setenv("PICKLEHEART_GEOFENCE_GUARD", "memory")
	t.Setenv("PICKLEHEART_SERVER_ADDR", ":9090")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Geofence.Cooldown)
	assert.Equal(t, "memory", cfg.Geofence.Guard)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "geofence:\n  radius_m: 200\n  guard: memory\npresence:\n  stale_after: 2h\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 200.0, cfg.Geofence.RadiusM)
	assert.Equal(t, 2*time.Hour, cfg.Presence.StaleAfter)
	// untouched keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Geofence.Cooldown)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Geofence.Guard = "etcd"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Geofence.RadiusM = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Database.DSN = ""
	assert.Error(t, bad.Validate())
}
