package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDownloader(); err != nil {
		return err
	}
	if err := c.validateHooks(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDownloader() error {
	if c.Downloader.RateLimit < 0 {
		return errors.New("downloader.rate_limit must not be negative")
	}
	if c.Downloader.Retries < 0 {
		return errors.New("downloader.retries must not be negative")
	}
	switch strings.ToLower(c.Downloader.MergeFormat) {
	case "mkv", "mp4", "webm":
		return nil
	default:
		return fmt.Errorf("downloader.merge_format: unsupported value %q", c.Downloader.MergeFormat)
	}
}

func (c *Config) validateHooks() error {
	seen := make(map[string]struct{}, len(c.Hooks.Extensions))
	for i, ext := range c.Hooks.Extensions {
		name := strings.TrimSpace(ext.Name)
		if name == "" {
			return fmt.Errorf("hooks.extensions[%d]: name is required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("hooks.extensions: duplicate name %q", name)
		}
		seen[name] = struct{}{}
		if len(ext.Events) == 0 {
			return fmt.Errorf("hooks.extensions[%d] (%s): at least one event is required", i, name)
		}
		if strings.TrimSpace(ext.Command) == "" && strings.TrimSpace(ext.NtfyTopic) == "" {
			return fmt.Errorf("hooks.extensions[%d] (%s): either command or ntfy_topic must be set", i, name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
