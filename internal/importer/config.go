package importer

import (
	"fmt"
	"time"
)

// Config holds the row retry settings of the batch coordinator.
type Config struct {
	// MaxRowAttempts is how many times a row is run before a conflict or
	// storage error rejects it.
	// Default: 2 (one retry)
	MaxRowAttempts uint

	// RetryDelay is the pause before a row is retried.
	// Default: 25ms
	RetryDelay time.Duration
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxRowAttempts > 10 {
		return fmt.Errorf("max row attempts must be at most 10, got %d", c.MaxRowAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *Config) ApplyDefaults() {
	if c.MaxRowAttempts == 0 {
		c.MaxRowAttempts = 2
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 25 * time.Millisecond
	}
}
