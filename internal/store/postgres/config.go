package postgres

import (
	"fmt"
	"time"

	"github.com/wolfeidau/tenantdesk/internal/query"
)

// RepositoryConfig holds configuration for the scoped ticket repository.
// Pool configuration is handled separately via PoolConfig.
type RepositoryConfig struct {
	// DefaultLimit is the page size used when a list call supplies none.
	// Default: 10
	DefaultLimit int

	// MaxLimit is the largest page size a list call may request.
	// Default: 100
	MaxLimit int

	// QueryTimeoutSeconds is the maximum time one repository operation may run.
	// Default: 10 seconds
	// Set to a negative value to use context timeouts only
	QueryTimeoutSeconds int32

	// StrictBinding turns a principal binding that fails verification into an
	// ErrBindingInconsistency. When false the mismatch is logged and counted.
	StrictBinding bool
}

// Validate checks that the configuration is valid.
func (c *RepositoryConfig) Validate() error {
	qc := c.QueryConfig()
	if err := qc.Validate(); err != nil {
		return fmt.Errorf("invalid pagination config: %w", err)
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *RepositoryConfig) ApplyDefaults() {
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit == 0 {
		c.MaxLimit = 100
	}
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 10 // 10 seconds
	}
}

// QueryConfig returns the pagination bounds used to parse list filters.
func (c *RepositoryConfig) QueryConfig() query.Config {
	return query.Config{DefaultLimit: c.DefaultLimit, MaxLimit: c.MaxLimit}
}

func (c *RepositoryConfig) queryTimeout() time.Duration {
	if c.QueryTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}
