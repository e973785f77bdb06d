// Package config loads, validates, and normalizes daemon configuration.
//
// Configuration comes from a TOML file (default
// ~/.config/posturesync/config.toml) merged over compiled defaults. Path
// fields are tilde-expanded and made absolute during load so downstream
// code never deals with relative paths.
package config
