package transcode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"reel/internal/catalog"
)

// Transcoder runs ffmpeg operations. Every operation writes to a distinct
// destination path; ffmpeg refuses in-place edits, so callers that rewrite a
// file route through a temporary sibling and rename over the original.
type Transcoder struct {
	binary string
	logger *slog.Logger
}

// NewTranscoder builds a transcoder around the given ffmpeg binary.
func NewTranscoder(binary string, logger *slog.Logger) *Transcoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcoder{binary: binary, logger: logger}
}

func (t *Transcoder) run(ctx context.Context, args ...string) error {
	full := append([]string{"-hide_banner", "-nostdin", "-y"}, args...)
	cmd := commandContext(ctx, t.binary, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	t.logger.Debug("ffmpeg", "args", strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if idx := strings.LastIndexByte(detail, '\n'); idx >= 0 {
			detail = detail[idx+1:]
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, detail)
	}
	return nil
}

// audioCodecArgs maps a destination extension to encoder arguments.
func audioCodecArgs(ext string) ([]string, error) {
	switch ext {
	case ".mp3":
		return []string{"-codec:a", "libmp3lame", "-qscale:a", "2"}, nil
	case ".ogg", ".oga":
		return []string{"-codec:a", "libvorbis", "-qscale:a", "6"}, nil
	case ".opus":
		return []string{"-codec:a", "libopus"}, nil
	case ".flac":
		return []string{"-codec:a", "flac"}, nil
	case ".m4a":
		return []string{"-codec:a", "aac", "-b:a", "192k"}, nil
	default:
		return nil, fmt.Errorf("unsupported audio extension %q", ext)
	}
}

// ExtractAudio converts the audio track of src into dst, the target codec
// chosen from dst's extension, applying the given tags.
func (t *Transcoder) ExtractAudio(ctx context.Context, src, dst string, tags catalog.AudioTags) error {
	codec, err := audioCodecArgs(strings.ToLower(filepath.Ext(dst)))
	if err != nil {
		return err
	}

	args := []string{"-i", src, "-vn"}
	args = append(args, codec...)
	if tags.Artist != "" {
		args = append(args, "-metadata", "artist="+tags.Artist)
	}
	if tags.Album != "" {
		args = append(args, "-metadata", "album="+tags.Album)
	}
	if tags.Year != "" {
		args = append(args, "-metadata", "date="+tags.Year)
	}
	if tags.Genre != "" {
		args = append(args, "-metadata", "genre="+tags.Genre)
	}
	args = append(args, dst)
	return t.run(ctx, args...)
}

// Concat joins parts into dst with the concat demuxer, stream-copied. All
// parts must share codecs and container parameters.
func (t *Transcoder) Concat(ctx context.Context, parts []string, dst string) error {
	if len(parts) == 0 {
		return fmt.Errorf("concat: no input files")
	}

	list, err := os.CreateTemp(filepath.Dir(dst), ".concat-*.txt")
	if err != nil {
		return fmt.Errorf("concat list: %w", err)
	}
	defer os.Remove(list.Name())

	for _, part := range parts {
		abs, err := filepath.Abs(part)
		if err != nil {
			list.Close()
			return err
		}
		fmt.Fprintf(list, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := list.Close(); err != nil {
		return err
	}

	return t.run(ctx, "-f", "concat", "-safe", "0", "-i", list.Name(), "-c", "copy", dst)
}

// Cut stream-copies the [start, end) span of src into dst. A zero end copies
// to the end of the input.
func (t *Transcoder) Cut(ctx context.Context, src, dst string, start, end float64) error {
	args := []string{"-ss", formatSeconds(start), "-i", src}
	if end > 0 {
		args = append(args, "-to", formatSeconds(end-start))
	}
	args = append(args, "-c", "copy", dst)
	return t.run(ctx, args...)
}

// RemuxWithMetadata stream-copies src into dst, replacing container-level
// metadata (including chapter atoms) with the ffmetadata file at metaPath.
func (t *Transcoder) RemuxWithMetadata(ctx context.Context, src, metaPath, dst string) error {
	return t.run(ctx,
		"-i", src,
		"-i", metaPath,
		"-map", "0",
		"-map_metadata", "1",
		"-map_chapters", "1",
		"-c", "copy",
		dst,
	)
}

// RewriteTags stream-copies src into dst applying the given container tags.
// Passing an empty value removes the tag.
func (t *Transcoder) RewriteTags(ctx context.Context, src, dst string, tags map[string]string) error {
	args := []string{"-i", src, "-map", "0", "-c", "copy"}
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "-metadata", key+"="+tags[key])
	}
	args = append(args, dst)
	return t.run(ctx, args...)
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
