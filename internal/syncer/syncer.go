// Package syncer reconciles the local catalog with the remote listings of
// tracked channels. Syncs are additive and idempotent: records are created
// for unknown ids, titles and positions are refreshed, and nothing is ever
// deleted locally when the remote delists a video.
package syncer

import (
	"context"
	"fmt"
	"log/slog"

	"reel/internal/catalog"
	"reel/internal/feed"
	"reel/internal/hooks"
	"reel/internal/naming"
)

// Enumerator lists the remote contents of a channel.
type Enumerator interface {
	Enumerate(ctx context.Context, ch *catalog.Channel) (*feed.Listing, error)
}

// Result summarizes one channel's sync.
type Result struct {
	Channel  string
	Added    int
	Updated  int
	Complete bool // whether the applied listing covered the whole channel
}

// Syncer applies remote listings to the catalog. When an RSS enumerator is
// configured it is tried first; the full lister runs on the first sync, when
// the feed reveals a possible gap, or when RSS fails.
type Syncer struct {
	store      *catalog.Store
	rss        Enumerator // nil disables incremental sync
	full       Enumerator
	dispatcher *hooks.Dispatcher
	logger     *slog.Logger
}

// New builds a syncer. rss may be nil to force full listings.
func New(store *catalog.Store, rss, full Enumerator, dispatcher *hooks.Dispatcher, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{store: store, rss: rss, full: full, dispatcher: dispatcher, logger: logger}
}

// SyncChannel reconciles one channel.
func (s *Syncer) SyncChannel(ctx context.Context, ch *catalog.Channel) (*Result, error) {
	known, err := s.knownIDs(ctx, ch.ID)
	if err != nil {
		return nil, err
	}

	listing, err := s.enumerate(ctx, ch, known)
	if err != nil {
		return nil, err
	}

	result, err := s.apply(ctx, ch, listing, known)
	if err != nil {
		return nil, err
	}

	if err := s.store.TouchChannelSynced(ctx, ch.ID, listing.Title); err != nil {
		return nil, err
	}
	s.logger.Info("synced channel",
		"channel", ch.DisplayName(),
		"added", result.Added,
		"updated", result.Updated,
		"complete", result.Complete,
	)
	return result, nil
}

// SyncAll reconciles every tracked channel. A failing channel is logged and
// does not stop the rest; the error of the last failure is returned alongside
// the successful results.
func (s *Syncer) SyncAll(ctx context.Context) ([]*Result, error) {
	channels, err := s.store.Channels(ctx)
	if err != nil {
		return nil, err
	}
	return s.SyncChannels(ctx, channels)
}

// SyncChannels reconciles the given channels with the same per-channel
// failure isolation as SyncAll.
func (s *Syncer) SyncChannels(ctx context.Context, channels []*catalog.Channel) ([]*Result, error) {
	var results []*Result
	var lastErr error
	for _, ch := range channels {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		result, err := s.SyncChannel(ctx, ch)
		if err != nil {
			s.logger.Error("channel sync failed", "channel", ch.DisplayName(), "error", err)
			s.dispatcher.Dispatch(ctx, hooks.Event{
				Name:    hooks.EventError,
				Channel: ch.DisplayName(),
				Err:     err,
			})
			lastErr = fmt.Errorf("sync %s: %w", ch.DisplayName(), err)
			continue
		}
		results = append(results, result)
	}
	return results, lastErr
}

// enumerate picks the cheapest listing that is guaranteed to close the gap
// between the catalog and the remote. RSS feeds only carry recent uploads, so
// the full lister runs when the channel has never been synced or when even
// the oldest feed entry is unknown (older unknown videos may exist).
func (s *Syncer) enumerate(ctx context.Context, ch *catalog.Channel, known map[string]bool) (*feed.Listing, error) {
	if s.rss == nil || ch.LastSyncedAt == nil || len(known) == 0 {
		return s.full.Enumerate(ctx, ch)
	}

	listing, err := s.rss.Enumerate(ctx, ch)
	if err != nil {
		s.logger.Warn("rss enumeration failed, falling back to full listing",
			"channel", ch.DisplayName(), "error", err)
		return s.full.Enumerate(ctx, ch)
	}
	if ch.RSSURL == "" {
		if err := s.store.SetChannelRSS(ctx, ch.ID, feed.FeedURL(ch)); err != nil {
			return nil, err
		}
	}

	if len(listing.Entries) > 0 {
		oldest := listing.Entries[len(listing.Entries)-1]
		if !known[oldest.ID] {
			s.logger.Info("feed window exhausted, running full listing", "channel", ch.DisplayName())
			return s.full.Enumerate(ctx, ch)
		}
	}
	return listing, nil
}

func (s *Syncer) apply(ctx context.Context, ch *catalog.Channel, listing *feed.Listing, known map[string]bool) (*Result, error) {
	result := &Result{Channel: ch.DisplayName(), Complete: listing.Complete}
	seen := make(map[string]bool, len(listing.Entries))

	for _, entry := range listing.Entries {
		seen[entry.ID] = true
		if !known[entry.ID] {
			if err := s.addEntry(ctx, ch, entry); err != nil {
				return nil, err
			}
			result.Added++
			continue
		}
		updated, err := s.refreshEntry(ctx, entry, listing.Complete)
		if err != nil {
			return nil, err
		}
		if updated {
			result.Updated++
		}
	}

	// A complete listing is authoritative: anything known but absent has been
	// delisted remotely. The record survives with position -1.
	if listing.Complete {
		videos, err := s.store.VideosForChannel(ctx, ch.ID)
		if err != nil {
			return nil, err
		}
		for _, video := range videos {
			if !seen[video.ID] && video.Position != -1 {
				if err := s.store.SetVideoPosition(ctx, video.ID, -1); err != nil {
					return nil, err
				}
				result.Updated++
			}
		}
	}
	return result, nil
}

func (s *Syncer) addEntry(ctx context.Context, ch *catalog.Channel, entry feed.Entry) error {
	name := naming.Sanitize(entry.Title)
	video, err := s.store.AddVideo(ctx, entry.ID, ch.ID, entry.Title, name, entry.Position)
	if err != nil {
		return fmt.Errorf("add video %s: %w", entry.ID, err)
	}
	if entry.Duration > 0 || entry.Uploader != "" || entry.Published != nil {
		if err := s.store.SetVideoDetails(ctx, entry.ID, entry.Duration, entry.Uploader, entry.Published); err != nil {
			return err
		}
	}
	s.dispatcher.Dispatch(ctx, hooks.Event{
		Name:    hooks.EventAdd,
		Video:   video,
		Channel: ch.DisplayName(),
	})
	return nil
}

func (s *Syncer) refreshEntry(ctx context.Context, entry feed.Entry, complete bool) (bool, error) {
	video, err := s.store.VideoByID(ctx, entry.ID)
	if err != nil || video == nil {
		return false, err
	}

	updated := false
	if entry.Title != "" && entry.Title != video.Title {
		if err := s.store.UpdateVideoTitle(ctx, video.ID, entry.Title); err != nil {
			return false, err
		}
		updated = true
	}
	// Feed positions only order the feed window; list positions are trusted
	// from complete listings alone.
	if complete && entry.Position != video.Position {
		if err := s.store.SetVideoPosition(ctx, video.ID, entry.Position); err != nil {
			return false, err
		}
		updated = true
	}
	if complete && entry.Duration > 0 && entry.Duration != video.Duration {
		published := video.PublishedAt
		if entry.Published != nil {
			published = entry.Published
		}
		uploader := video.Uploader
		if entry.Uploader != "" {
			uploader = entry.Uploader
		}
		if err := s.store.SetVideoDetails(ctx, video.ID, entry.Duration, uploader, published); err != nil {
			return false, err
		}
		updated = true
	}
	return updated, nil
}

func (s *Syncer) knownIDs(ctx context.Context, channelID int64) (map[string]bool, error) {
	videos, err := s.store.VideosForChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(videos))
	for _, video := range videos {
		known[video.ID] = true
	}
	return known, nil
}
