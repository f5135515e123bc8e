package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c Config) Validate() error {
	if err := c.Source().validate(); err != nil {
		return err
	}
	if err := c.Destination().validate(); err != nil {
		return err
	}

	if err := validatePort("metrics_port", c.MetricsPort); err != nil {
		return err
	}
	if c.RetryDelay <= 0 {
		return errors.New("retry_delay must be > 0")
	}
	if c.KeepAlive <= 0 {
		return errors.New("keepalive must be > 0")
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("connect_timeout must be > 0")
	}
	if c.ClientIDPrefix == "" {
		return errors.New("client_id_prefix is required")
	}

	switch c.LogEncoding {
	case "console", "json":
	default:
		return fmt.Errorf("log_encoding must be console or json, got %q", c.LogEncoding)
	}
	return nil
}

func (e Endpoint) validate() error {
	if e.Host == "" {
		return fmt.Errorf("%s broker host is required", e.Name)
	}
	if e.Topic == "" {
		return fmt.Errorf("%s topic is required", e.Name)
	}
	return validatePort(e.Name+" broker port", e.Port)
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}
