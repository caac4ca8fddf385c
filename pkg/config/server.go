package config

import "fmt"

// ServerConfig configures the microservice HTTP server.
type ServerConfig struct {
	// Host to bind.
	Host string `yaml:"host,omitempty"`

	// Port to listen on.
	Port int `yaml:"port,omitempty"`

	// EnableMetrics exposes Prometheus metrics on /metrics.
	EnableMetrics *bool `yaml:"enable_metrics,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdown_timeout,omitempty"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.EnableMetrics == nil {
		c.EnableMetrics = BoolPtr(true)
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = Duration(30_000_000_000) // 30s
	}
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}
