// Package config loads, normalizes, and validates distiller configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// CLI and pipeline need: workspace directories, the CEO3 source endpoint,
// template selection, external tool binaries, and seal-time tolerances.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
