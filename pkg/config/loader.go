package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, OMEGA_CONFIG env, ./config.yaml, /etc/omega/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. OMEGA_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/omega/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("OMEGA_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/omega/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps OMEGA_* environment variables to config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OMEGA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("OMEGA_SIGNING_SECRET"); v != "" {
		cfg.Auth.SigningSecret = v
	}
	if v := os.Getenv("OMEGA_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.SessionTTL = d
		}
	}
	if v := os.Getenv("OMEGA_AUDIT_DSN"); v != "" {
		cfg.Ledger.Postgres.DSN = v
	}

	// OMEGA_TENANTS: JSON array of tenant configs.
	if v := os.Getenv("OMEGA_TENANTS"); v != "" {
		tenants, err := parseTenantsJSON(v)
		if err == nil && len(tenants) > 0 {
			cfg.Tenants = tenants
		}
	}
}

// parseTenantsJSON parses a JSON array of tenant configurations.
func parseTenantsJSON(jsonStr string) ([]TenantConfig, error) {
	var tenants []TenantConfig
	if err := json.Unmarshal([]byte(jsonStr), &tenants); err != nil {
		return nil, fmt.Errorf("parsing tenants JSON: %w", err)
	}
	return tenants, nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// auth.signing_secret_file -> auth.signing_secret
	if cfg.Auth.SigningSecretFile != "" && cfg.Auth.SigningSecret == "" {
		val, err := readSecretFile(cfg.Auth.SigningSecretFile)
		if err != nil {
			return fmt.Errorf("auth.signing_secret_file: %w", err)
		}
		cfg.Auth.SigningSecret = val
	}

	// ledger.postgres.dsn_file -> ledger.postgres.dsn
	if cfg.Ledger.Postgres.DSNFile != "" && cfg.Ledger.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Ledger.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("ledger.postgres.dsn_file: %w", err)
		}
		cfg.Ledger.Postgres.DSN = val
	}

	// tenants[*].api_key_file -> tenants[*].api_key
	for i := range cfg.Tenants {
		if cfg.Tenants[i].APIKeyFile != "" && cfg.Tenants[i].APIKey == "" {
			val, err := readSecretFile(cfg.Tenants[i].APIKeyFile)
			if err != nil {
				return fmt.Errorf("tenants[%d].api_key_file: %w", i, err)
			}
			cfg.Tenants[i].APIKey = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
