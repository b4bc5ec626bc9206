package config

import (
	"fmt"
	"time"

	"github.com/rezkam/torque/internal/env"
)

// ServerConfig holds all configuration for the server binary (cmd/server):
// HTTP ingress, the store it persists tasks to, and the broker it pushes
// enqueue instructions onto.
type ServerConfig struct {
	Store  StoreConfig
	Broker BrokerConfig
	Auth   AuthConfig

	HTTPPort          string        `env:"TORQUE_HTTP_PORT"`
	DefaultTimeout    int           `env:"TORQUE_DEFAULT_TIMEOUT"`
	ProxyHeaderPrefix string        `env:"TORQUE_PROXY_HEADER_PREFIX"`
	MaxBodyBytes      int64         `env:"TORQUE_MAX_BODY_BYTES"`
	ShutdownTimeout   time.Duration `env:"TORQUE_SHUTDOWN_TIMEOUT"`
	OTelEnabled       bool          `env:"TORQUE_OTEL_ENABLED"`
}

// LoadServerConfig loads and validates server configuration from the
// environment, applying defaults for anything left unset.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("loading server config: %w", err)
	}

	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 30
	}
	if cfg.ProxyHeaderPrefix == "" {
		cfg.ProxyHeaderPrefix = "X-Torque-"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	cfg.Auth.applyDefaults()

	return cfg, nil
}
