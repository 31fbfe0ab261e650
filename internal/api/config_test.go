package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/vaultd/internal/conf"
)

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	cfg := ConfigFromSettings(&conf.Settings{
		Debug: true,
		WebServer: conf.WebServerSettings{
			Host:           "127.0.0.1",
			Port:           "8080",
			BodyLimit:      "2M",
			AllowedOrigins: []string{"https://notes.example"},
		},
		Metrics: conf.MetricsSettings{Enabled: false},
	})

	assert.Equal(t, "127.0.0.1:8080", cfg.Address())
	assert.Equal(t, "2M", cfg.BodyLimit)
	assert.Equal(t, []string{"https://notes.example"}, cfg.AllowedOrigins)
	assert.False(t, cfg.MetricsEnabled)
	assert.True(t, cfg.Debug)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	require.NoError(t, cfg.Validate())
}

func TestConfigFromSettingsKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg := ConfigFromSettings(&conf.Settings{WebServer: conf.WebServerSettings{Port: "3000"}})
	assert.Equal(t, ":3000", cfg.Address())
	assert.Equal(t, conf.DefaultBodyLimit, cfg.BodyLimit)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no port", func(c *Config) { c.Port = "" }},
		{"no body limit", func(c *Config) { c.BodyLimit = "" }},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"zero write timeout", func(c *Config) { c.WriteTimeout = 0 }},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		assert.Error(t, cfg.Validate(), tt.name)
	}
}

func TestDisplayAddress(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "localhost:3000", displayAddress(":3000"))
	assert.Equal(t, "localhost:3000", displayAddress("0.0.0.0:3000"))
	assert.Equal(t, "127.0.0.1:3000", displayAddress("127.0.0.1:3000"))
	assert.Equal(t, "[::1]:3000", displayAddress("[::1]:3000"))
}
