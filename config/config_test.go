package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 1800*time.Second, cfg.Game.InactivityTimeout)
	assert.Equal(t, time.Minute, cfg.Game.SweepInterval)
	assert.True(t, cfg.Game.SingleOpenMatch)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  http_address: ":18080"
database:
  driver: gorm
  postgres:
    host: db
    port: 6543
game:
  inactivity_timeout: 90s
  single_open_match: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("GOMOKU_GAME_SWEEP_INTERVAL", "30s")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":18080", cfg.Server.HTTPAddress)
	assert.Equal(t, DriverGorm, cfg.Database.Driver)
	assert.Equal(t, "db", cfg.Database.Postgres.Host)
	assert.Equal(t, 6543, cfg.Database.Postgres.Port)
	assert.Equal(t, 90*time.Second, cfg.Game.InactivityTimeout)
	assert.Equal(t, 30*time.Second, cfg.Game.SweepInterval)
	assert.False(t, cfg.Game.SingleOpenMatch)
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "mongo"},
		Game:     GameConfig{InactivityTimeout: time.Second},
	}
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = DriverSQL
	assert.NoError(t, cfg.Validate())

	cfg.Game.InactivityTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg.Game.InactivityTimeout = time.Second
	cfg.Game.SweepInterval = -time.Second
	assert.Error(t, cfg.Validate())
}
