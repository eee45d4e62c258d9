package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("DATABASE_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "medipredict.db", cfg.DatabasePath)
	assert.Equal(t, "release", cfg.GinMode)
	assert.Equal(t, 30*time.Minute, cfg.ReminderWindow)
	assert.Equal(t, 10, cfg.LoginRatePerMinute)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("DATABASE_PATH", "/tmp/data/med.db")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("REMINDER_WINDOW", "15m")
	t.Setenv("SEED_USER_NAME", " demo ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/data/med.db", cfg.DatabasePath)
	assert.Equal(t, "s3cret", cfg.SessionSecret)
	assert.Equal(t, 15*time.Minute, cfg.ReminderWindow)
	assert.Equal(t, "demo", cfg.SeedUserName)
}

func TestLoadRejectsInvalidDurations(t *testing.T) {
	t.Setenv("ESTIMATOR_IDLE_TTL", "-1m")

	_, err := Load()
	require.Error(t, err)
}

func TestLocation(t *testing.T) {
	loc, err := AppConfig{Timezone: "Local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = AppConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = AppConfig{Timezone: "Mars/Olympus"}.Location()
	require.Error(t, err)
}

func TestLoadRejectsUnknownGinMode(t *testing.T) {
	t.Setenv("GIN_MODE", "verbose")

	_, err := Load()
	require.Error(t, err)
}
