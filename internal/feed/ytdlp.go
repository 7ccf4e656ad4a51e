package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"reel/internal/catalog"
)

// commandContext is swapped in tests to avoid invoking the real binary.
var commandContext = exec.CommandContext

// FullEnumerator asks the downloader binary for a channel's complete flat
// playlist. Slower than RSS by an order of magnitude, but authoritative.
type FullEnumerator struct {
	binary     string
	cookieFile string
}

// NewFullEnumerator builds a full lister around the downloader binary.
func NewFullEnumerator(binary, cookieFile string) *FullEnumerator {
	return &FullEnumerator{binary: binary, cookieFile: cookieFile}
}

type flatPlaylist struct {
	Title   string      `json:"title"`
	Entries []flatEntry `json:"entries"`
}

type flatEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Uploader   string  `json:"uploader"`
	UploadDate string  `json:"upload_date"`
}

// Enumerate lists every remote video for the channel. The returned listing
// is complete and preserves the provider's ordering.
func (e *FullEnumerator) Enumerate(ctx context.Context, ch *catalog.Channel) (*Listing, error) {
	args := []string{"--flat-playlist", "--skip-download", "-J"}
	if e.cookieFile != "" {
		args = append(args, "--cookies", e.cookieFile)
	}
	args = append(args, SourceURL(ch))

	cmd := commandContext(ctx, e.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("list %s: %w: %s", ch.Name, err, firstLine(detail))
		}
		return nil, fmt.Errorf("list %s: %w", ch.Name, err)
	}

	var playlist flatPlaylist
	if err := json.Unmarshal(stdout.Bytes(), &playlist); err != nil {
		return nil, fmt.Errorf("parse listing for %s: %w", ch.Name, err)
	}

	listing := &Listing{Title: playlist.Title, Complete: true}
	for i, entry := range playlist.Entries {
		if entry.ID == "" {
			continue
		}
		item := Entry{
			ID:       entry.ID,
			Title:    entry.Title,
			Position: i,
			Duration: int(entry.Duration),
			Uploader: entry.Uploader,
		}
		if published, err := time.Parse("20060102", entry.UploadDate); err == nil {
			item.Published = &published
		}
		listing.Entries = append(listing.Entries, item)
	}
	return listing, nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
