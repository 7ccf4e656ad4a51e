package config

import _ "embed"

//go:embed sample_config.toml
var sampleConfig string

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}
