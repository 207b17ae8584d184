// Package config loads, normalizes, and validates freight configuration.
//
// Configuration lives in a TOML file. A migration project carries its own
// copy under <source>/.freight/config.toml (created by 'freight init' or
// on first migrate); otherwise the daemon falls back to
// ~/.config/freight/config.toml. Paths are expanded (including tilde
// shortcuts) and validated in one pass so downstream code always receives
// absolute, usable values.
package config
