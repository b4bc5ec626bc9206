package config

import (
	"fmt"
	"time"

	"github.com/rezkam/torque/internal/env"
)

// PoolConfig mirrors internal/workerpool.Config, loaded from the
// environment instead of constructed in code.
type PoolConfig struct {
	MaxTasks        int           `env:"TORQUE_MAX_TASKS"`
	MinDelay        time.Duration `env:"TORQUE_MIN_DELAY"`
	MaxEmptyDelay   time.Duration `env:"TORQUE_MAX_EMPTY_DELAY"`
	MaxErrorDelay   time.Duration `env:"TORQUE_MAX_ERROR_DELAY"`
	EmptyMultiplier float64       `env:"TORQUE_EMPTY_MULTIPLIER"`
	ErrorMultiplier float64       `env:"TORQUE_ERROR_MULTIPLIER"`
	FinishOnEmpty   bool          `env:"TORQUE_FINISH_ON_EMPTY"`
}

func (c *PoolConfig) applyDefaults() {
	if c.MaxTasks <= 0 {
		c.MaxTasks = 5
	}
	if c.MinDelay <= 0 {
		c.MinDelay = 200 * time.Millisecond
	}
	if c.MaxEmptyDelay <= 0 {
		c.MaxEmptyDelay = 1600 * time.Millisecond
	}
	if c.MaxErrorDelay <= 0 {
		c.MaxErrorDelay = 240 * time.Second
	}
	if c.EmptyMultiplier <= 0 {
		c.EmptyMultiplier = 2.0
	}
	if c.ErrorMultiplier <= 0 {
		c.ErrorMultiplier = 4.0
	}
}

// LifecycleConfig mirrors internal/lifecycle.Config.
type LifecycleConfig struct {
	MaxTaskErrors int           `env:"TORQUE_MAX_TASK_ERRORS"`
	MaxTaskDelay  time.Duration `env:"TORQUE_MAX_TASK_DELAY"`
}

func (c *LifecycleConfig) applyDefaults() {
	if c.MaxTaskErrors <= 0 {
		c.MaxTaskErrors = 100
	}
	if c.MaxTaskDelay <= 0 {
		c.MaxTaskDelay = 1800 * time.Second
	}
}

// DueScannerConfig mirrors internal/duescanner.Config.
type DueScannerConfig struct {
	Interval  time.Duration `env:"TORQUE_DUE_SCAN_INTERVAL"`
	BatchSize int           `env:"TORQUE_DUE_SCAN_BATCH_SIZE"`
}

func (c *DueScannerConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
}

// WorkerConfig holds all configuration for the worker binary (cmd/worker):
// the pool and due scanner that drain the store the server writes to.
type WorkerConfig struct {
	Store      StoreConfig
	Broker     BrokerConfig
	Pool       PoolConfig
	Lifecycle  LifecycleConfig
	DueScanner DueScannerConfig

	OTelEnabled bool `env:"TORQUE_OTEL_ENABLED"`
}

// LoadWorkerConfig loads and validates worker configuration from the
// environment, applying defaults for anything left unset.
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("loading worker config: %w", err)
	}

	cfg.Pool.applyDefaults()
	cfg.Lifecycle.applyDefaults()
	cfg.DueScanner.applyDefaults()

	return cfg, nil
}
