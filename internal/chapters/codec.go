package chapters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"reel/internal/transcode"
)

// ChapterFormatError marks a container that cannot carry chapter metadata.
type ChapterFormatError struct {
	Path string
	Ext  string
}

func (e *ChapterFormatError) Error() string {
	return fmt.Sprintf("%s: container %q does not support chapters", filepath.Base(e.Path), e.Ext)
}

// codec persists a chapter list in a container-specific encoding.
type codec interface {
	read(ctx context.Context, path string) ([]Chapter, error)
	write(ctx context.Context, path string, list []Chapter, duration float64) error
}

// codecFor selects the persistence strategy from the file extension.
func codecFor(prober *transcode.Prober, ffmpeg *transcode.Transcoder, path string) (codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mkv", ".mka", ".webm", ".mp4", ".m4a", ".m4v", ".mov":
		return &atomCodec{prober: prober, ffmpeg: ffmpeg}, nil
	case ".ogg", ".oga", ".opus", ".flac":
		return &cueTagCodec{prober: prober, ffmpeg: ffmpeg}, nil
	default:
		return nil, &ChapterFormatError{Path: path, Ext: filepath.Ext(path)}
	}
}

// atomCodec stores chapters as container chapter atoms (matroska and mp4
// families), written by remuxing with an ffmetadata sidecar.
type atomCodec struct {
	prober *transcode.Prober
	ffmpeg *transcode.Transcoder
}

func (c *atomCodec) read(ctx context.Context, path string) ([]Chapter, error) {
	info, err := c.prober.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}
	var list []Chapter
	for _, ch := range info.Chapters {
		list = append(list, Chapter{Start: ch.Start, Title: ch.Title})
	}
	return list, nil
}

func (c *atomCodec) write(ctx context.Context, path string, list []Chapter, duration float64) error {
	meta, err := os.CreateTemp(filepath.Dir(path), ".chapters-*.ffmeta")
	if err != nil {
		return fmt.Errorf("metadata sidecar: %w", err)
	}
	defer os.Remove(meta.Name())

	if err := writeFFMetadata(meta, list, duration); err != nil {
		meta.Close()
		return err
	}
	if err := meta.Close(); err != nil {
		return err
	}

	return replaceViaTemp(path, func(tmp string) error {
		return c.ffmpeg.RemuxWithMetadata(ctx, path, meta.Name(), tmp)
	})
}

// writeFFMetadata renders an ffmetadata document with one [CHAPTER] block
// per entry, millisecond timebase.
func writeFFMetadata(w *os.File, list []Chapter, duration float64) error {
	if _, err := fmt.Fprintln(w, ";FFMETADATA1"); err != nil {
		return err
	}
	for i, ch := range list {
		end := duration
		if i+1 < len(list) {
			end = list[i+1].Start
		}
		_, err := fmt.Fprintf(w, "[CHAPTER]\nTIMEBASE=1/1000\nSTART=%d\nEND=%d\ntitle=%s\n",
			int64(ch.Start*1000), int64(end*1000), escapeFFMetadata(ch.Title))
		if err != nil {
			return err
		}
	}
	return nil
}

// escapeFFMetadata escapes the characters ffmetadata treats specially.
func escapeFFMetadata(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `=`, `\=`, `;`, `\;`, `#`, `\#`, "\n", `\`+"\n")
	return replacer.Replace(s)
}

// cueTagCodec stores chapters as CHAPTERnnn / CHAPTERnnnNAME vorbis comment
// pairs, the convention ogg and flac players understand.
type cueTagCodec struct {
	prober *transcode.Prober
	ffmpeg *transcode.Transcoder
}

var cueTagPattern = regexp.MustCompile(`(?i)^CHAPTER(\d{3})(NAME)?$`)

func (c *cueTagCodec) read(ctx context.Context, path string) ([]Chapter, error) {
	info, err := c.prober.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}

	starts := make(map[string]float64)
	names := make(map[string]string)
	for key, value := range info.Tags {
		m := cueTagPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		if m[2] != "" {
			names[m[1]] = value
			continue
		}
		if start, err := ParseTimestamp(value); err == nil {
			starts[m[1]] = start
		}
	}

	indices := make([]string, 0, len(starts))
	for idx := range starts {
		indices = append(indices, idx)
	}
	sort.Strings(indices)

	var list []Chapter
	for _, idx := range indices {
		list = append(list, Chapter{Start: starts[idx], Title: names[idx]})
	}
	return list, nil
}

func (c *cueTagCodec) write(ctx context.Context, path string, list []Chapter, _ float64) error {
	existing, err := c.read(ctx, path)
	if err != nil {
		return err
	}

	// Old cue tags are cleared first so a shorter list leaves no stale tail.
	tags := make(map[string]string)
	for i := range existing {
		tags[fmt.Sprintf("CHAPTER%03d", i+1)] = ""
		tags[fmt.Sprintf("CHAPTER%03dNAME", i+1)] = ""
	}
	for i, ch := range list {
		tags[fmt.Sprintf("CHAPTER%03d", i+1)] = FormatTimestamp(ch.Start)
		tags[fmt.Sprintf("CHAPTER%03dNAME", i+1)] = ch.Title
	}

	return replaceViaTemp(path, func(tmp string) error {
		return c.ffmpeg.RewriteTags(ctx, path, tmp, tags)
	})
}

// replaceViaTemp runs write against a temporary sibling of path and renames
// the result over the original on success.
func replaceViaTemp(path string, write func(tmp string) error) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp"+filepath.Ext(path))
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
