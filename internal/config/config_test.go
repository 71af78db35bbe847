package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := GetDefaults()
	require.NoError(t, validateConfig(cfg))
	assert.Equal(t, 1200*time.Millisecond, cfg.Transport.Timeout)
	assert.Equal(t, 400*time.Millisecond, cfg.Session.PersistDelay)
	assert.Equal(t, "file", cfg.Storage.Driver)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	content := `
server:
  port: 9191
storage:
  driver: memory
transport:
  timeout: 2s
logging:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 2*time.Second, cfg.Transport.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched sections keep their defaults
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad driver", func(c *Config) { c.Storage.Driver = "etcd" }},
		{"postgres without url", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"file without path", func(c *Config) { c.Storage.File.Path = "" }},
		{"zero timeout", func(c *Config) { c.Transport.Timeout = 0 }},
		{"zero attach timeout", func(c *Config) { c.Transport.AttachTimeout = 0 }},
		{"negative persist delay", func(c *Config) { c.Session.PersistDelay = -time.Second }},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}
