// Package config provides unified configuration for the omega auth server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (OMEGA_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the omega auth server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Logs          LogsConfig          `yaml:"logs"`
	Sessions      SessionsConfig      `yaml:"sessions"`
	Tenants       []TenantConfig      `yaml:"tenants"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
}

// AuthConfig holds digest, envelope, and lockout settings.
type AuthConfig struct {
	SigningSecret     string        `yaml:"signing_secret"`      // required
	SigningSecretFile string        `yaml:"signing_secret_file"` // _file variant for signing_secret
	EnvelopeTTL       time.Duration `yaml:"envelope_ttl"`        // default: 24h
	SessionTTL        time.Duration `yaml:"session_ttl"`         // default: 24h
	LockoutThreshold  int           `yaml:"lockout_threshold"`   // default: 5
}

// LedgerConfig holds external audit ledger settings. When the Postgres DSN
// is unset, the audit layer runs on its local fallback store only.
type LedgerConfig struct {
	BackendTimeout time.Duration  `yaml:"backend_timeout"` // default: 3s
	Postgres       PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"` // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// LogsConfig holds encrypted log store settings.
type LogsConfig struct {
	TTL           time.Duration `yaml:"ttl"`            // default: 168h (7 days)
	SweepInterval time.Duration `yaml:"sweep_interval"` // default: 2m
}

// SessionsConfig holds session sweep settings.
type SessionsConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"` // default: 5m
}

// TenantConfig describes one tenant entry.
type TenantConfig struct {
	APIKey     string `yaml:"api_key"`
	APIKeyFile string `yaml:"api_key_file"` // _file variant for api_key
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Domain     string `yaml:"domain"`
	UsageLimit int64  `yaml:"usage_limit"` // 0 = unlimited
	Active     bool   `yaml:"active"`
}

// ObservabilityConfig holds monitoring and logging settings.
type ObservabilityConfig struct {
	Metrics  MetricsConfig `yaml:"metrics"`
	Debug    string        `yaml:"debug"`     // comma-separated debug categories
	LogLevel string        `yaml:"log_level"` // default: "INFO"
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			EnvelopeTTL:      24 * time.Hour,
			SessionTTL:       24 * time.Hour,
			LockoutThreshold: 5,
		},
		Ledger: LedgerConfig{
			BackendTimeout: 3 * time.Second,
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Logs: LogsConfig{
			TTL:           7 * 24 * time.Hour,
			SweepInterval: 2 * time.Minute,
		},
		Sessions: SessionsConfig{
			SweepInterval: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
			LogLevel: "INFO",
		},
	}
}
