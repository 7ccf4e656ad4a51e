// Package fetch wraps the external downloader binary. The client builds the
// invocation from configuration, streams progress to the logger, and
// classifies failures so callers can react to premieres and paywalls.
package fetch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"reel/internal/config"
	"reel/internal/feed"
)

// commandContext is swapped in tests to avoid invoking the real binary.
var commandContext = exec.CommandContext

// mediaExtensions lists container extensions a finished download may carry,
// in preference order when the merge format itself is absent.
var mediaExtensions = []string{"mkv", "mp4", "webm", "m4a", "opus", "ogg", "mp3", "flac"}

// Request describes one video download.
type Request struct {
	VideoID   string
	OutputDir string
	BaseName  string // filesystem name without extension
}

// Result reports where a finished download landed.
type Result struct {
	Path    string
	Elapsed time.Duration
}

// Client invokes the downloader binary.
type Client struct {
	binary     string
	mergeFmt   string
	rateLimit  int64
	retries    int
	cookieFile string
	artifacts  config.Downloader
	logger     *slog.Logger
}

// NewClient builds a downloader client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		binary:     cfg.Downloader.Binary,
		mergeFmt:   cfg.Downloader.MergeFormat,
		rateLimit:  cfg.Downloader.RateLimit,
		retries:    cfg.Downloader.Retries,
		cookieFile: cfg.Paths.CookieFile,
		artifacts:  cfg.Downloader,
		logger:     logger,
	}
}

// Download fetches one video into the request's output directory. The final
// media file is renamed to the requested base name; sidecar artifacts keep
// their suffixes. Failures are classified via the stderr the binary emits.
func (c *Client) Download(ctx context.Context, req Request) (*Result, error) {
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	args := c.buildArgs(req)
	cmd := commandContext(ctx, c.binary, args...)
	cmd.Dir = req.OutputDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attach stdout: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			c.logger.Debug("downloader", "video", req.VideoID, "line", line)
		}
	}

	if err := cmd.Wait(); err != nil {
		return nil, classifyFailure(req.VideoID, stderr.String(), time.Now(), err)
	}

	path, err := c.locateResult(req)
	if err != nil {
		return nil, err
	}
	return &Result{Path: path, Elapsed: time.Since(start)}, nil
}

func (c *Client) buildArgs(req Request) []string {
	args := []string{
		"--no-progress",
		"--output", req.BaseName + ".%(ext)s",
		"--merge-output-format", c.mergeFmt,
		"--retries", strconv.Itoa(c.retries),
	}
	if c.rateLimit > 0 {
		args = append(args, "--limit-rate", strconv.FormatInt(c.rateLimit, 10))
	}
	if c.cookieFile != "" {
		args = append(args, "--cookies", c.cookieFile)
	}
	if c.artifacts.WriteThumbnails {
		args = append(args, "--write-thumbnail")
	}
	if c.artifacts.EmbedMetadata {
		args = append(args, "--embed-metadata")
	}
	if c.artifacts.WriteInfoJSON {
		args = append(args, "--write-info-json")
	}
	if c.artifacts.WriteDescription {
		args = append(args, "--write-description")
	}
	if c.artifacts.WriteAnnotations {
		args = append(args, "--write-annotations")
	}
	return append(args, feed.VideoURL(req.VideoID))
}

// locateResult finds the finished media file. The merge format extension is
// preferred; otherwise the first known media extension present wins.
func (c *Client) locateResult(req Request) (string, error) {
	if path, ok := LocateMedia(req.OutputDir, req.BaseName, c.mergeFmt); ok {
		return path, nil
	}
	return "", fmt.Errorf("download %s finished but no media file found under %s", req.VideoID, req.OutputDir)
}

// LocateMedia looks for an existing media file named base under dir, trying
// the preferred extension first and then the known container extensions.
func LocateMedia(dir, base, preferredExt string) (string, bool) {
	if preferredExt != "" {
		candidate := filepath.Join(dir, base+"."+strings.TrimPrefix(preferredExt, "."))
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	for _, ext := range mediaExtensions {
		candidate := filepath.Join(dir, base+"."+ext)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}
