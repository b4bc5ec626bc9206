package config

import "errors"

// BrokerConfig selects and tunes the instruction broker.
type BrokerConfig struct {
	// Backend is "postgres" (LISTEN/NOTIFY, shares the store's pool) or
	// "memory" (in-process, restart loses queued instructions). Defaults
	// to "memory".
	Backend string `env:"TORQUE_BROKER_BACKEND"`

	// MemoryCapacity bounds the in-process channel when Backend is
	// "memory". Zero falls back to a small default.
	MemoryCapacity int `env:"TORQUE_BROKER_MEMORY_CAPACITY"`
}

// Validate implements env.Validator.
func (c *BrokerConfig) Validate() error {
	switch c.Backend {
	case "":
		c.Backend = "memory"
	case "memory", "postgres":
	default:
		return errors.New("unknown TORQUE_BROKER_BACKEND: " + c.Backend)
	}
	if c.MemoryCapacity <= 0 {
		c.MemoryCapacity = 1000
	}
	return nil
}
