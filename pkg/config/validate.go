package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	// auth.signing_secret is required; the envelope is worthless unsigned.
	if c.Auth.SigningSecret == "" && c.Auth.SigningSecretFile == "" {
		errs = append(errs, fmt.Errorf("auth.signing_secret or auth.signing_secret_file is required"))
	}

	if c.Auth.LockoutThreshold <= 0 {
		errs = append(errs, fmt.Errorf("auth.lockout_threshold must be > 0, got %d", c.Auth.LockoutThreshold))
	}

	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.session_ttl must be > 0"))
	}

	if c.Logs.TTL <= 0 {
		errs = append(errs, fmt.Errorf("logs.ttl must be > 0"))
	}

	seen := make(map[string]bool, len(c.Tenants))
	for i, t := range c.Tenants {
		if t.ID == "" {
			errs = append(errs, fmt.Errorf("tenants[%d].id is required", i))
		}
		if t.APIKey == "" && t.APIKeyFile == "" {
			errs = append(errs, fmt.Errorf("tenants[%d].api_key or api_key_file is required", i))
		}
		if t.UsageLimit < 0 {
			errs = append(errs, fmt.Errorf("tenants[%d].usage_limit must be >= 0 (0 = unlimited), got %d", i, t.UsageLimit))
		}
		if seen[t.ID] {
			errs = append(errs, fmt.Errorf("tenants[%d].id %q is duplicated", i, t.ID))
		}
		seen[t.ID] = true
	}

	return errors.Join(errs...)
}
