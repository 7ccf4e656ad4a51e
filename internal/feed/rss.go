package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"reel/internal/catalog"
)

// maxFeedBytes caps the feed body read; provider feeds are a few kilobytes.
const maxFeedBytes = 4 << 20

// RSSEnumerator reads a channel's Atom feed over HTTP.
type RSSEnumerator struct {
	client *http.Client
}

// NewRSSEnumerator builds an RSS enumerator with the given request timeout.
func NewRSSEnumerator(timeout time.Duration) *RSSEnumerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RSSEnumerator{client: &http.Client{Timeout: timeout}}
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	VideoID   string `xml:"videoId"`
	Title     string `xml:"title"`
	Author    string `xml:"author>name"`
	Published string `xml:"published"`
}

// Enumerate fetches and parses the channel's feed. The returned listing is
// never complete: feeds carry only the latest uploads, newest first.
func (e *RSSEnumerator) Enumerate(ctx context.Context, ch *catalog.Channel) (*Listing, error) {
	url := ch.RSSURL
	if url == "" {
		url = FeedURL(ch)
	}
	feed, err := e.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	listing := &Listing{Title: feed.Title, Complete: false}
	for i, entry := range feed.Entries {
		if entry.VideoID == "" {
			continue
		}
		item := Entry{
			ID:       entry.VideoID,
			Title:    entry.Title,
			Position: i,
			Uploader: entry.Author,
		}
		if published, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			item.Published = &published
		}
		listing.Entries = append(listing.Entries, item)
	}
	return listing, nil
}

func (e *RSSEnumerator) fetch(ctx context.Context, url string) (*atomFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: %s returned %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return parseAtom(body)
}

func parseAtom(data []byte) (*atomFeed, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return &feed, nil
}
