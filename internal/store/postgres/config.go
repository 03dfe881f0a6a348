package postgres

import "fmt"

// StoreConfig holds settings shared by the PostgreSQL stores.
// Pool configuration is handled separately via PoolConfig.
type StoreConfig struct {
	// QueryTimeoutSeconds bounds every statement run inside InTx.
	// Default: 10 seconds
	// Set to a negative value to use context timeouts only
	QueryTimeoutSeconds int32
}

// Validate checks that the configuration is valid.
func (c *StoreConfig) Validate() error {
	if c.QueryTimeoutSeconds > 3600 {
		return fmt.Errorf("query timeout must be at most 3600 seconds, got %d", c.QueryTimeoutSeconds)
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *StoreConfig) ApplyDefaults() {
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 10
	}
}
