package postgres

import "time"

// Config holds PostgreSQL connection settings for the audit backend.
type Config struct {
	// DSN is the PostgreSQL connection string (required).
	DSN string

	// MaxConns is the maximum pool size. Default: 10.
	MaxConns int32

	// MinConns is the minimum pool size. Default: 1.
	MinConns int32

	// MaxConnLifetime bounds connection reuse. Default: 1 hour.
	MaxConnLifetime time.Duration

	// MigrateOnStart applies schema migrations during New.
	MigrateOnStart bool
}

// defaults fills in zero-value fields.
func (c *Config) defaults() {
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MinConns == 0 {
		c.MinConns = 1
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = time.Hour
	}
}
