package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0 9,18 * * *", cfg.Monitor.Cron)
	assert.Equal(t, "Europe/Istanbul", cfg.Monitor.TZ)
	assert.Equal(t, 20, cfg.Monitor.MaxResults)
	assert.Equal(t, 0, cfg.Import.MinDetailFields)
	assert.Equal(t, 30*time.Second, cfg.Import.PhotoTimeout)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MONITOR_MAX_RESULTS", "5")
	t.Setenv("RESIZE_PHOTOS", "true")
	t.Setenv("NATS_IMPORT_SUBJECT", "imports.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Monitor.MaxResults)
	assert.True(t, cfg.Import.ResizePhotos)
	assert.Equal(t, "imports.test", cfg.NATS.Subject)
}

func TestDSN(t *testing.T) {
	cfg := &Config{Postgres: PostgresConfig{
		Host: "db", Port: "5432", User: "u", Password: "p", DB: "emlak", SSLMode: "disable",
	}}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=emlak sslmode=disable", cfg.DSN())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Monitor: MonitorConfig{TZ: "Mars/Olympus"}}
	assert.Equal(t, time.UTC, cfg.Location())
}
