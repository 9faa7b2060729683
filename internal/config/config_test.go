package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 10, cfg.MaxReconnectAttempts)
	require.Equal(t, time.Second, cfg.ReconnectBaseDelay)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
	require.Equal(t, 3, cfg.MaxRequestRetries)
	require.True(t, cfg.PreferWebsocket)
	require.NotEmpty(t, cfg.ServerURL)
	require.NotEmpty(t, cfg.HomeDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ANONCHAT_SERVER_URL", "https://chat.example.test")
	t.Setenv("ANONCHAT_MAX_RECONNECT_ATTEMPTS", "4")
	t.Setenv("ANONCHAT_RECONNECT_BASE_DELAY", "250ms")
	t.Setenv("ANONCHAT_REQUEST_TIMEOUT", "2s")
	t.Setenv("ANONCHAT_MAX_REQUEST_RETRIES", "5")
	home := t.TempDir()
	t.Setenv("ANONCHAT_HOME", home)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "https://chat.example.test", cfg.ServerURL)
	require.Equal(t, home, cfg.HomeDir)
	require.Equal(t, 4, cfg.MaxReconnectAttempts)
	require.Equal(t, 250*time.Millisecond, cfg.ReconnectBaseDelay)
	require.Equal(t, 2*time.Second, cfg.RequestTimeout)
	require.Equal(t, 5, cfg.MaxRequestRetries)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server URL", func(c *Config) { c.ServerURL = "" }},
		{"negative reconnect attempts", func(c *Config) { c.MaxReconnectAttempts = -1 }},
		{"zero base delay", func(c *Config) { c.ReconnectBaseDelay = 0 }},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero request retries", func(c *Config) { c.MaxRequestRetries = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
