package config

import "errors"

// ErrDSNRequired is returned when a postgres-backed StoreConfig has no DSN.
var ErrDSNRequired = errors.New("TORQUE_DB_DSN is required when TORQUE_STORE_BACKEND=postgres")

// StoreConfig selects and tunes the task/application store backend.
type StoreConfig struct {
	// Backend is "postgres" or "sqlite". Defaults to "sqlite" so a fresh
	// checkout runs without any external dependency.
	Backend string `env:"TORQUE_STORE_BACKEND"`

	// DSN is the Postgres connection string, required when Backend is
	// "postgres".
	DSN string `env:"TORQUE_DB_DSN"`

	// SQLitePath is the database file path (or ":memory:") used when
	// Backend is "sqlite".
	SQLitePath string `env:"TORQUE_SQLITE_PATH"`

	MaxConns        int `env:"TORQUE_DB_MAX_CONNS"`
	MinConns        int `env:"TORQUE_DB_MIN_CONNS"`
	ConnMaxLifetime int `env:"TORQUE_DB_CONN_MAX_LIFETIME_SEC"`
	ConnMaxIdleTime int `env:"TORQUE_DB_CONN_MAX_IDLE_TIME_SEC"`
}

// Validate implements env.Validator.
func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "", "sqlite":
		c.Backend = "sqlite"
		if c.SQLitePath == "" {
			c.SQLitePath = "torque.db"
		}
	case "postgres":
		if c.DSN == "" {
			return ErrDSNRequired
		}
	default:
		return errors.New("unknown TORQUE_STORE_BACKEND: " + c.Backend)
	}
	return nil
}
