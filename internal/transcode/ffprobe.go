// Package transcode wraps the ffmpeg and ffprobe binaries for the media
// operations the catalog performs after download: audio conversion, stream
// copies, and chapter metadata rewrites.
package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// commandContext is swapped in tests to avoid invoking the real binaries.
var commandContext = exec.CommandContext

// ChapterInfo is one chapter as reported by ffprobe.
type ChapterInfo struct {
	Start float64 // seconds
	End   float64 // seconds
	Title string
}

// MediaInfo is the subset of ffprobe output the catalog cares about.
type MediaInfo struct {
	FormatName string
	Duration   float64 // seconds
	Tags       map[string]string
	Chapters   []ChapterInfo
}

// Prober inspects media files with ffprobe.
type Prober struct {
	binary string
}

// NewProber builds a prober around the given ffprobe binary.
func NewProber(binary string) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary}
}

type probeOutput struct {
	Format struct {
		FormatName string            `json:"format_name"`
		Duration   string            `json:"duration"`
		Tags       map[string]string `json:"tags"`
	} `json:"format"`
	Chapters []struct {
		StartTime string            `json:"start_time"`
		EndTime   string            `json:"end_time"`
		Tags      map[string]string `json:"tags"`
	} `json:"chapters"`
}

// Inspect runs ffprobe on path and returns the parsed container metadata.
func (p *Prober) Inspect(ctx context.Context, path string) (*MediaInfo, error) {
	cmd := commandContext(ctx, p.binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_chapters",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}

	info := &MediaInfo{
		FormatName: out.Format.FormatName,
		Tags:       out.Format.Tags,
	}
	if out.Format.Duration != "" {
		if seconds, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			info.Duration = seconds
		}
	}
	for _, ch := range out.Chapters {
		chapter := ChapterInfo{Title: ch.Tags["title"]}
		if start, err := strconv.ParseFloat(ch.StartTime, 64); err == nil {
			chapter.Start = start
		}
		if end, err := strconv.ParseFloat(ch.EndTime, 64); err == nil {
			chapter.End = end
		}
		info.Chapters = append(info.Chapters, chapter)
	}
	return info, nil
}

// Duration returns the container duration of path in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	info, err := p.Inspect(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
