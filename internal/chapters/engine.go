package chapters

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"reel/internal/transcode"
)

// Engine performs the chapter-level file operations: reading and rewriting
// chapter lists, merging files into a chaptered whole, and splitting a
// chaptered file into per-chapter parts.
type Engine struct {
	prober *transcode.Prober
	ffmpeg *transcode.Transcoder
	logger *slog.Logger
}

// NewEngine builds a chapter engine around the media tool clients.
func NewEngine(prober *transcode.Prober, ffmpeg *transcode.Transcoder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{prober: prober, ffmpeg: ffmpeg, logger: logger}
}

// Read returns the chapter list stored in path, empty when none.
func (e *Engine) Read(ctx context.Context, path string) ([]Chapter, error) {
	codec, err := codecFor(e.prober, e.ffmpeg, path)
	if err != nil {
		return nil, err
	}
	return codec.read(ctx, path)
}

// Set replaces the chapter list of path with the normalized list.
func (e *Engine) Set(ctx context.Context, path string, list []Chapter) error {
	normalized, err := Normalize(list)
	if err != nil {
		return err
	}
	codec, err := codecFor(e.prober, e.ffmpeg, path)
	if err != nil {
		return err
	}
	duration, err := e.prober.Duration(ctx, path)
	if err != nil {
		return err
	}
	for _, ch := range normalized {
		if ch.Start >= duration && duration > 0 {
			return fmt.Errorf("chapter at %s starts beyond the %s duration",
				FormatTimestamp(ch.Start), FormatTimestamp(duration))
		}
	}
	e.logger.Info("writing chapters", "path", filepath.Base(path), "count", len(normalized))
	return codec.write(ctx, path, normalized, duration)
}

// Clear removes every chapter from path.
func (e *Engine) Clear(ctx context.Context, path string) error {
	codec, err := codecFor(e.prober, e.ffmpeg, path)
	if err != nil {
		return err
	}
	duration, err := e.prober.Duration(ctx, path)
	if err != nil {
		return err
	}
	return codec.write(ctx, path, nil, duration)
}

// Rename retitles the 1-based chapter index in place, keeping offsets.
func (e *Engine) Rename(ctx context.Context, path string, index int, title string) error {
	list, err := e.Read(ctx, path)
	if err != nil {
		return err
	}
	if index < 1 || index > len(list) {
		return fmt.Errorf("chapter index %d out of range (file has %d)", index, len(list))
	}
	list[index-1].Title = title
	return e.Set(ctx, path, list)
}

// Merge concatenates parts into dst and writes a chapter per part, titled
// after the part's file name unless titles are supplied. Parts must share
// codecs; the concat is a stream copy.
func (e *Engine) Merge(ctx context.Context, parts []string, titles []string, dst string) error {
	if len(parts) < 2 {
		return fmt.Errorf("merge needs at least two input files")
	}
	if _, err := codecFor(e.prober, e.ffmpeg, dst); err != nil {
		return err
	}

	var list []Chapter
	var offset float64
	for i, part := range parts {
		title := strings.TrimSuffix(filepath.Base(part), filepath.Ext(part))
		if i < len(titles) && titles[i] != "" {
			title = titles[i]
		}
		list = append(list, Chapter{Start: offset, Title: title})

		duration, err := e.prober.Duration(ctx, part)
		if err != nil {
			return err
		}
		offset += duration
	}

	e.logger.Info("merging", "parts", len(parts), "dst", filepath.Base(dst))
	if err := e.ffmpeg.Concat(ctx, parts, dst); err != nil {
		return err
	}
	return e.Set(ctx, dst, list)
}

// Split cuts src into one file per chapter under outDir, each named after
// its chapter title. Files without chapters are rejected.
func (e *Engine) Split(ctx context.Context, src, outDir string, sanitize func(string) string) ([]string, error) {
	list, err := e.Read(ctx, src)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%s has no chapters to split on", filepath.Base(src))
	}
	duration, err := e.prober.Duration(ctx, src)
	if err != nil {
		return nil, err
	}
	if sanitize == nil {
		sanitize = func(s string) string { return s }
	}

	ext := filepath.Ext(src)
	var written []string
	for i, ch := range list {
		end := duration
		if i+1 < len(list) {
			end = list[i+1].Start
		}
		name := fmt.Sprintf("%02d - %s%s", i+1, sanitize(ch.Title), ext)
		dst := filepath.Join(outDir, name)
		e.logger.Info("splitting", "chapter", ch.Title, "dst", name)
		if err := e.ffmpeg.Cut(ctx, src, dst, ch.Start, end); err != nil {
			return written, err
		}
		written = append(written, dst)
	}
	return written, nil
}
