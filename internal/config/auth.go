package config

import "time"

// AuthConfig tunes the Authenticator and the API-key format cmd/apikey
// generates.
type AuthConfig struct {
	OperationTimeout time.Duration `env:"TORQUE_AUTH_OPERATION_TIMEOUT"`
	UpdateQueueSize  int           `env:"TORQUE_AUTH_UPDATE_QUEUE_SIZE"`

	KeyType     string `env:"TORQUE_API_KEY_TYPE"`
	ServiceName string `env:"TORQUE_API_SERVICE_NAME"`
	Version     string `env:"TORQUE_API_VERSION"`
}

func (c *AuthConfig) applyDefaults() {
	if c.KeyType == "" {
		c.KeyType = "sk"
	}
	if c.ServiceName == "" {
		c.ServiceName = "torque"
	}
	if c.Version == "" {
		c.Version = "v1"
	}
}
