// Package config loads, validates, and defaults reel's TOML configuration.
package config
