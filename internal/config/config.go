package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Paths contains directory configuration.
type Paths struct {
	// LibraryDir is the working directory that holds the catalog database and
	// one subdirectory per channel. Defaults to the current directory.
	LibraryDir string `toml:"library_dir"`
	LogDir     string `toml:"log_dir"`
	CookieFile string `toml:"cookie_file"`
}

// Downloader contains configuration for the external downloader invocation.
type Downloader struct {
	Binary           string `toml:"binary"`
	MergeFormat      string `toml:"merge_format"`
	RateLimit        int64  `toml:"rate_limit"` // bytes per second, 0 disables the cap
	Retries          int    `toml:"retries"`
	WriteThumbnails  bool   `toml:"write_thumbnails"`
	EmbedMetadata    bool   `toml:"embed_metadata"`
	WriteInfoJSON    bool   `toml:"write_info_json"`
	WriteDescription bool   `toml:"write_description"`
	WriteAnnotations bool   `toml:"write_annotations"`
}

// Transcoder contains configuration for ffmpeg/ffprobe invocations.
type Transcoder struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Sync contains configuration for remote listing enumeration.
type Sync struct {
	// RSSEnabled selects incremental RSS enumeration when a feed is known.
	// When false every sync performs a full listing.
	RSSEnabled     bool `toml:"rss_enabled"`
	RequestTimeout int  `toml:"request_timeout"` // seconds
}

// Policy contains batch failure and sleep behaviour.
type Policy struct {
	// FailureSkip skips past a failed download: the failure is recorded and
	// the video returns to new so the next pass retries it. When false the
	// video is parked in state failed until an explicit retry.
	FailureSkip bool `toml:"failure_skip"`
	// AbortOnFailure stops the batch after the first downloader failure.
	AbortOnFailure bool `toml:"abort_on_failure"`
	// AutoSleep transitions a not-yet-released video to sleeping when the
	// downloader error carries a parseable availability time.
	AutoSleep bool `toml:"auto_sleep"`
}

// HookExtension describes one externally configured hook callback.
type HookExtension struct {
	Name    string   `toml:"name"`
	Events  []string `toml:"events"`
	Enabled bool     `toml:"enabled"`
	// Command is executed for each event with REEL_EVENT, REEL_VIDEO_ID,
	// REEL_CHANNEL, and REEL_PATH in the environment.
	Command string `toml:"command"`
	// NtfyTopic posts the event to an ntfy endpoint instead of running a command.
	NtfyTopic string `toml:"ntfy_topic"`
}

// Hooks contains hook dispatch configuration.
type Hooks struct {
	Disabled   bool            `toml:"disabled"`
	Extensions []HookExtension `toml:"extensions"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reel.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Downloader Downloader `toml:"downloader"`
	Transcoder Transcoder `toml:"transcoder"`
	Sync       Sync       `toml:"sync"`
	Policy     Policy     `toml:"policy"`
	Hooks      Hooks      `toml:"hooks"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/reel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. The second return is the resolved
// path and the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reel.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		c.Paths.LibraryDir = "."
	}
	if c.Paths.LibraryDir, err = ExpandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CookieFile != "" {
		if c.Paths.CookieFile, err = ExpandPath(c.Paths.CookieFile); err != nil {
			return fmt.Errorf("paths.cookie_file: %w", err)
		}
	}
	if strings.TrimSpace(c.Downloader.Binary) == "" {
		c.Downloader.Binary = defaultDownloaderBinary
	}
	if strings.TrimSpace(c.Downloader.MergeFormat) == "" {
		c.Downloader.MergeFormat = defaultMergeFormat
	}
	if strings.TrimSpace(c.Transcoder.FFmpegBinary) == "" {
		c.Transcoder.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(c.Transcoder.FFprobeBinary) == "" {
		c.Transcoder.FFprobeBinary = "ffprobe"
	}
	if c.Sync.RequestTimeout <= 0 {
		c.Sync.RequestTimeout = defaultSyncRequestTimeout
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// EnsureDirectories creates the library and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LibraryDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the catalog database location inside the library directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.LibraryDir, "reel.db")
}

// LockPath returns the advisory lock location guarding batch operations.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LibraryDir, "reel.lock")
}

// ExpandPath expands a leading ~ to the user home directory and returns an
// absolute path.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}
