// Package config loads, normalizes, and validates pact configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PACT_DATA_DIR and PACT_LOG_LEVEL. The Config type centralizes the site
// description, the quality thresholds and T80 policy, and the locations of
// raw data, metadata, and the registry.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical policy names, and clear validation errors.
package config
