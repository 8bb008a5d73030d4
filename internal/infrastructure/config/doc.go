// Package config handles loading and validating Home Sentry configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (admin password, JWT secret, broker credentials)
//     should be set via environment variables
//   - The JWT secret has no fallback: the process refuses to start without it
//   - The admin credential pair falls back to a well-known insecure default
//     when unset; this is deliberate legacy behaviour and is reported by
//     UsesFallbackAdminCredentials so the caller can warn about it
//
// Configuration is loaded once at startup and never mutated afterwards.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
