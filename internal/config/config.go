package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all environment-based configuration for the anonchat client.
type Config struct {
	// ServerURL is the base URL of the chat server.
	ServerURL string `env:"ANONCHAT_SERVER_URL" envDefault:"https://anonymous-chat-server-d43x.onrender.com"`

	// PreferWebsocket selects websocket transport before long-polling.
	PreferWebsocket bool `env:"ANONCHAT_PREFER_WEBSOCKET" envDefault:"true"`

	// MaxReconnectAttempts bounds automatic reconnection. Once exhausted the
	// session stops retrying until an explicit Connect call.
	MaxReconnectAttempts int `env:"ANONCHAT_MAX_RECONNECT_ATTEMPTS" envDefault:"10"`

	// ReconnectBaseDelay is the first reconnect delay; it doubles per attempt.
	ReconnectBaseDelay time.Duration `env:"ANONCHAT_RECONNECT_BASE_DELAY" envDefault:"1s"`

	// RequestTimeout is how long a correlated request waits for its response
	// event before re-emitting.
	RequestTimeout time.Duration `env:"ANONCHAT_REQUEST_TIMEOUT" envDefault:"5s"`

	// MaxRequestRetries bounds emissions per correlated request.
	MaxRequestRetries int `env:"ANONCHAT_MAX_REQUEST_RETRIES" envDefault:"3"`

	// LogLevel controls logrus verbosity (trace|debug|info|warn|error).
	LogLevel string `env:"ANONCHAT_LOG_LEVEL" envDefault:"info"`

	// HomeDir is where the local identity is persisted. Empty means
	// ~/.anonchat, resolved at load time.
	HomeDir string `env:"ANONCHAT_HOME" envDefault:""`

	// PushoverToken enables Pushover notifications for friend requests and
	// invites when set together with PushoverUserKey.
	PushoverToken string `env:"ANONCHAT_PUSHOVER_TOKEN" envDefault:""`

	// PushoverUserKey is the Pushover destination user key.
	PushoverUserKey string `env:"ANONCHAT_PUSHOVER_USER_KEY" envDefault:""`

	// PushoverCooldown throttles repeated notifications per event key.
	PushoverCooldown time.Duration `env:"ANONCHAT_PUSHOVER_COOLDOWN" envDefault:"1m"`
}

// Load loads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	// .env is optional; missing file is not an error.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.HomeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.HomeDir = filepath.Join(home, ".anonchat")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL must not be empty")
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts must be >= 0, got %d", c.MaxReconnectAttempts)
	}
	if c.ReconnectBaseDelay <= 0 {
		return fmt.Errorf("reconnect base delay must be positive, got %s", c.ReconnectBaseDelay)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.MaxRequestRetries < 1 {
		return fmt.Errorf("max request retries must be >= 1, got %d", c.MaxRequestRetries)
	}
	return nil
}
