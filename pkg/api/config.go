package api

import (
	"net"
	"strconv"
	"time"
)

// Defaults for APIConfig.
const (
	DefaultAddress        = "127.0.0.1"
	DefaultPort           = 8080
	DefaultRequestTimeout = 30 * time.Second
)

// APIConfig configures the ftlsim HTTP API.
type APIConfig struct {
	// Enabled starts the API with 'ftlsim serve'. Nil means enabled.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Address is the interface to bind. Default: 127.0.0.1
	Address string `mapstructure:"address" validate:"omitempty,ip|hostname" yaml:"address"`

	// Port is the TCP port. Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout, WriteTimeout and IdleTimeout map onto http.Server.
	// Defaults: 10s, 10s, 60s
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout bounds a single handler. Runs execute in the launcher,
	// so no handler waits on a simulation. Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// IsEnabled reports whether the API should be served.
func (c *APIConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ListenAddress returns the host:port the server binds.
func (c *APIConfig) ListenAddress() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

func (c *APIConfig) applyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
}
