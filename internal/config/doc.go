// Package config loads, normalizes, and validates the reframe TOML
// configuration shared by the CLI and the daemon.
package config
