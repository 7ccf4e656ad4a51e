// Package download drives batch download passes over the catalog. Each pass
// wakes expired sleepers, walks the eligible videos in order, and isolates
// per-video failures so one broken video never stalls the rest.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"reel/internal/catalog"
	"reel/internal/config"
	"reel/internal/fetch"
	"reel/internal/hooks"
	"reel/internal/naming"
)

// Downloader fetches one video. Satisfied by fetch.Client; tests substitute
// a fake.
type Downloader interface {
	Download(ctx context.Context, req fetch.Request) (*fetch.Result, error)
}

// AudioExtractor converts a downloaded file's audio track. Satisfied by
// transcode.Transcoder.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, src, dst string, tags catalog.AudioTags) error
}

// BatchResult summarizes one download pass.
type BatchResult struct {
	RunID      string
	Woken      int64
	Attempted  int
	Downloaded int
	Reused     int // found on disk, no download needed
	Skipped    int // payment-required
	Slept      int
	Failed     int
}

// Orchestrator runs download passes against the catalog.
type Orchestrator struct {
	store      *catalog.Store
	cfg        *config.Config
	client     Downloader
	audio      AudioExtractor // nil disables audio extraction
	dispatcher *hooks.Dispatcher
	logger     *slog.Logger
}

// New builds an orchestrator.
func New(store *catalog.Store, cfg *config.Config, client Downloader, audio AudioExtractor, dispatcher *hooks.Dispatcher, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:      store,
		cfg:        cfg,
		client:     client,
		audio:      audio,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run executes one pass. channelID restricts the pass to one channel; zero
// covers the whole catalog. Returns an error only when the pass itself could
// not proceed or AbortOnFailure stopped it; per-video failures are recorded
// in the result.
func (o *Orchestrator) Run(ctx context.Context, channelID int64) (*BatchResult, error) {
	result := &BatchResult{RunID: uuid.New().String()}
	now := time.Now()

	woken, err := o.store.WakeExpired(ctx, now)
	if err != nil {
		return nil, err
	}
	result.Woken = woken

	videos, err := o.store.EligibleForDownload(ctx, channelID, now)
	if err != nil {
		return nil, err
	}
	o.logger.Info("download pass starting", "run", result.RunID, "eligible", len(videos), "woken", woken)

	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Attempted++
		if err := o.processVideo(ctx, video, result); err != nil {
			return result, err
		}
	}

	o.logger.Info("download pass finished",
		"run", result.RunID,
		"downloaded", result.Downloaded,
		"reused", result.Reused,
		"skipped", result.Skipped,
		"slept", result.Slept,
		"failed", result.Failed,
	)
	return result, nil
}

// processVideo handles one video and returns a non-nil error only when the
// batch must stop.
func (o *Orchestrator) processVideo(ctx context.Context, video *catalog.Video, result *BatchResult) error {
	channelName, outputDir, err := o.destination(ctx, video)
	if err != nil {
		return err
	}
	baseName := downloadBase(video)

	if _, err := o.store.MarkQueued(ctx, video.ID); err != nil {
		return fmt.Errorf("queue %s: %w", video.ID, err)
	}

	// A file already on disk under the resolved name is adopted, not
	// redownloaded. Interrupted runs and manual imports both land here.
	if existing, ok := fetch.LocateMedia(outputDir, baseName, o.cfg.Downloader.MergeFormat); ok {
		if _, err := o.store.MarkDownloaded(ctx, video.ID, existing); err != nil {
			return err
		}
		o.logger.Info("adopting existing file", "video", video.ID, "path", filepath.Base(existing))
		result.Reused++
		return nil
	}

	res, err := o.client.Download(ctx, fetch.Request{
		VideoID:   video.ID,
		OutputDir: outputDir,
		BaseName:  baseName,
	})
	if err != nil {
		return o.handleFailure(ctx, video, channelName, result, err)
	}

	updated, err := o.store.MarkDownloaded(ctx, video.ID, res.Path)
	if err != nil {
		return err
	}
	result.Downloaded++
	o.logger.Info("downloaded", "video", video.ID, "path", filepath.Base(res.Path), "elapsed", res.Elapsed.Round(time.Second))
	o.dispatcher.Dispatch(ctx, hooks.Event{
		Name:    hooks.EventDownload,
		Video:   updated,
		Channel: channelName,
		Path:    res.Path,
	})

	if o.audio != nil && !video.Tags.Empty() {
		o.extractAudio(ctx, updated, res.Path)
	}
	return nil
}

func (o *Orchestrator) handleFailure(ctx context.Context, video *catalog.Video, channelName string, result *BatchResult, cause error) error {
	if unavailable, ok := fetch.IsUnavailable(cause); ok && o.cfg.Policy.AutoSleep {
		slept, err := o.store.Sleep(ctx, video.ID, unavailable.Wake)
		if err != nil {
			return err
		}
		result.Slept++
		o.logger.Info("not yet released, sleeping", "video", video.ID, "until", unavailable.Wake.Format(time.RFC3339))
		o.dispatcher.Dispatch(ctx, hooks.Event{
			Name:    hooks.EventSleep,
			Video:   slept,
			Channel: channelName,
		})
		return nil
	}

	if fetch.IsPaymentRequired(cause) {
		skipped, err := o.store.Skip(ctx, video.ID)
		if err != nil {
			return err
		}
		result.Skipped++
		o.logger.Info("payment required, skipping", "video", video.ID)
		o.dispatcher.Dispatch(ctx, hooks.Event{
			Name:    hooks.EventSkipVideo,
			Video:   skipped,
			Channel: channelName,
			Err:     cause,
		})
		return nil
	}

	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		// The run was interrupted, not the video broken; leave it retryable.
		if _, err := o.store.ReturnToNew(ctx, video.ID, ""); err != nil {
			return err
		}
		return cause
	}

	result.Failed++
	o.logger.Error("download failed", "video", video.ID, "error", cause)
	if o.cfg.Policy.FailureSkip {
		// Skip past the failure: record it and return the video to new so
		// the next pass retries it.
		if _, err := o.store.ReturnToNew(ctx, video.ID, cause.Error()); err != nil {
			return err
		}
	} else {
		if _, err := o.store.MarkFailed(ctx, video.ID, cause.Error()); err != nil {
			return err
		}
	}
	o.dispatcher.Dispatch(ctx, hooks.Event{
		Name:    hooks.EventError,
		Video:   video,
		Channel: channelName,
		Err:     cause,
	})

	if o.cfg.Policy.AbortOnFailure {
		return fmt.Errorf("aborting after failure of %s: %w", video.ID, cause)
	}
	return nil
}

// downloadBase is the on-disk base name for a video. The name persisted at
// sync time is authoritative; a remote retitle changes only the stored title
// until an explicit update-names, so files keep matching skip-if-exists.
// Overrides, and records added without a title, resolve from the live fields.
func downloadBase(video *catalog.Video) string {
	if video.OverrideName == "" && video.Name != "" {
		return video.Name + "-" + video.ID
	}
	return naming.Resolve(video.Title, video.OverrideName, video.ID)
}

// destination resolves the channel display name and output directory for a
// video. Standalone videos land in the library root.
func (o *Orchestrator) destination(ctx context.Context, video *catalog.Video) (string, string, error) {
	if video.ChannelID == 0 {
		return "", o.cfg.Paths.LibraryDir, nil
	}
	ch, err := o.store.ChannelByID(ctx, video.ChannelID)
	if err != nil {
		return "", "", err
	}
	if ch == nil {
		return "", "", fmt.Errorf("video %s references missing channel %d", video.ID, video.ChannelID)
	}
	return ch.DisplayName(), filepath.Join(o.cfg.Paths.LibraryDir, ch.DirName()), nil
}

// extractAudio writes an mp3 beside the downloaded file carrying the video's
// stored tags. Extraction failure is logged, never fatal.
func (o *Orchestrator) extractAudio(ctx context.Context, video *catalog.Video, mediaPath string) {
	dst := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + ".mp3"
	if err := o.audio.ExtractAudio(ctx, mediaPath, dst, video.Tags); err != nil {
		o.logger.Warn("audio extraction failed", "video", video.ID, "error", err)
		return
	}
	o.logger.Info("extracted audio", "video", video.ID, "path", filepath.Base(dst))
}
