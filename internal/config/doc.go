// Package config loads, normalizes, and validates sift configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file when present, and honours
// environment fallbacks such as SIFT_REMOTE_SECRET_KEY. The Config type
// centralizes every knob the CLI and daemon need: confidence thresholds,
// scoring table overrides, pattern learning parameters, scan filters, the
// remote object store, notifications, and the daemon schedule.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
