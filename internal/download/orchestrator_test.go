package download_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reel/internal/catalog"
	"reel/internal/config"
	"reel/internal/download"
	"reel/internal/fetch"
	"reel/internal/hooks"
	"reel/internal/logging"
	"reel/internal/testsupport"
)

// fakeDownloader serves canned outcomes per video id and records the
// requests it saw.
type fakeDownloader struct {
	errs     map[string]error
	requests []fetch.Request
}

func (f *fakeDownloader) Download(ctx context.Context, req fetch.Request) (*fetch.Result, error) {
	f.requests = append(f.requests, req)
	if err := f.errs[req.VideoID]; err != nil {
		return nil, err
	}
	path := filepath.Join(req.OutputDir, req.BaseName+".mkv")
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return nil, err
	}
	return &fetch.Result{Path: path}, nil
}

type fixture struct {
	cfg        *config.Config
	store      *catalog.Store
	client     *fakeDownloader
	dispatcher *hooks.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return &fixture{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		client:     &fakeDownloader{errs: map[string]error{}},
		dispatcher: hooks.NewDispatcher(logging.NewNop()),
	}
}

func (f *fixture) orchestrator() *download.Orchestrator {
	return download.New(f.store, f.cfg, f.client, nil, f.dispatcher, logging.NewNop())
}

func (f *fixture) addVideo(t *testing.T, id string, channelID int64) {
	t.Helper()
	if _, err := f.store.AddVideo(context.Background(), id, channelID, "Title "+id, "Title "+id, 0); err != nil {
		t.Fatal(err)
	}
}

func TestRunDownloadsEligible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch, err := f.store.AddChannel(ctx, "creator", catalog.KindUser, "")
	if err != nil {
		t.Fatal(err)
	}
	f.addVideo(t, "vid-1", ch.ID)
	f.addVideo(t, "vid-2", ch.ID)

	result, err := f.orchestrator().Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Downloaded != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}

	video, _ := f.store.VideoByID(ctx, "vid-1")
	if video.State != catalog.StateDownloaded {
		t.Fatalf("state = %s", video.State)
	}
	wantDir := filepath.Join(f.cfg.Paths.LibraryDir, "creator")
	if filepath.Dir(video.DownloadPath) != wantDir {
		t.Fatalf("path = %q, want under %q", video.DownloadPath, wantDir)
	}
}

func TestRunAdoptsExistingFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)

	existing := filepath.Join(f.cfg.Paths.LibraryDir, "Title vid-1-vid-1.mkv")
	if err := os.WriteFile(existing, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := f.orchestrator().Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reused != 1 || result.Downloaded != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(f.client.requests) != 0 {
		t.Fatal("downloader was invoked for an adopted file")
	}

	video, _ := f.store.VideoByID(ctx, "vid-1")
	if video.State != catalog.StateDownloaded || video.DownloadPath != existing {
		t.Fatalf("video = %+v", video)
	}
}

func TestRunKeepsStoredNameAfterRetitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)

	existing := filepath.Join(f.cfg.Paths.LibraryDir, "Title vid-1-vid-1.mkv")
	if err := os.WriteFile(existing, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}

	// A remote retitle updates only the stored title; the on-disk name keeps
	// matching until update-names recomputes it.
	if err := f.store.UpdateVideoTitle(ctx, "vid-1", "Retitled"); err != nil {
		t.Fatal(err)
	}

	result, err := f.orchestrator().Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Reused != 1 || result.Downloaded != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(f.client.requests) != 0 {
		t.Fatalf("downloader invoked with %+v", f.client.requests)
	}

	video, _ := f.store.VideoByID(ctx, "vid-1")
	if video.DownloadPath != existing {
		t.Fatalf("path = %q", video.DownloadPath)
	}
}

func TestRunOverrideNameWinsOverStoredName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)
	if err := f.store.SetVideoOverride(ctx, "vid-1", "Preferred"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.orchestrator().Run(ctx, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(f.client.requests) != 1 || f.client.requests[0].BaseName != "Preferred-vid-1" {
		t.Fatalf("requests = %+v", f.client.requests)
	}
}

func TestRunSleepsUnreleasedVideo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)

	wake := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	f.client.errs["vid-1"] = &fetch.UnavailableError{VideoID: "vid-1", Wake: wake, Reason: "premiere"}

	result, err := f.orchestrator().Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Slept != 1 {
		t.Fatalf("result = %+v", result)
	}

	video, _ := f.store.VideoByID(ctx, "vid-1")
	if video.State != catalog.StateSleeping || video.SleepUntil == nil || !video.SleepUntil.Equal(wake) {
		t.Fatalf("video = %+v", video)
	}
}

func TestRunAutoSleepDisabled(t *testing.T) {
	f := newFixture(t)
	f.cfg.Policy.AutoSleep = false
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)
	f.client.errs["vid-1"] = &fetch.UnavailableError{VideoID: "vid-1", Wake: time.Now().Add(time.Hour)}

	result, err := f.orchestrator().Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Slept != 0 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunSkipsPaywalledVideo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)
	f.client.errs["vid-1"] = &fetch.PaymentRequiredError{VideoID: "vid-1", Reason: "members only"}

	var skipped []string
	f.dispatcher.Register([]string{hooks.EventSkipVideo}, "collect", func(ctx context.Context, event hooks.Event) error {
		skipped = append(skipped, event.VideoID())
		return nil
	})

	result, err := f.orchestrator().Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped != 1 {
		t.Fatalf("result = %+v", result)
	}
	video, _ := f.store.VideoByID(ctx, "vid-1")
	if video.State != catalog.StateSkipped {
		t.Fatalf("state = %s", video.State)
	}
	if len(skipped) != 1 || skipped[0] != "vid-1" {
		t.Fatalf("skip events = %v", skipped)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)
	f.addVideo(t, "vid-2", 0)
	f.client.errs["vid-1"] = errors.New("network down")

	result, err := f.orchestrator().Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 || result.Downloaded != 1 {
		t.Fatalf("result = %+v", result)
	}

	// The default policy records the failure but keeps the video
	// retry-eligible.
	broken, _ := f.store.VideoByID(ctx, "vid-1")
	if broken.State != catalog.StateNew || broken.FailureReason != "network down" {
		t.Fatalf("broken = %+v", broken)
	}
	healthy, _ := f.store.VideoByID(ctx, "vid-2")
	if healthy.State != catalog.StateDownloaded {
		t.Fatalf("healthy = %+v", healthy)
	}

	// Once the fault clears, the next pass picks the video up again without
	// an explicit retry.
	delete(f.client.errs, "vid-1")
	result, err = f.orchestrator().Run(ctx, 0)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result.Attempted != 1 || result.Downloaded != 1 {
		t.Fatalf("second result = %+v", result)
	}
	recovered, _ := f.store.VideoByID(ctx, "vid-1")
	if recovered.State != catalog.StateDownloaded || recovered.FailureReason != "" {
		t.Fatalf("recovered = %+v", recovered)
	}
}

func TestRunFailureSkipDisabledParksFailed(t *testing.T) {
	f := newFixture(t)
	f.cfg.Policy.FailureSkip = false
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)
	f.client.errs["vid-1"] = errors.New("network down")

	if _, err := f.orchestrator().Run(ctx, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	video, _ := f.store.VideoByID(ctx, "vid-1")
	if video.State != catalog.StateFailed || video.FailureReason != "network down" {
		t.Fatalf("video = %+v", video)
	}

	// Parked videos stay out of later passes until retried.
	result, err := f.orchestrator().Run(ctx, 0)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result.Attempted != 0 {
		t.Fatalf("second result = %+v", result)
	}
}

func TestRunAbortOnFailure(t *testing.T) {
	f := newFixture(t)
	f.cfg.Policy.AbortOnFailure = true
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)
	f.addVideo(t, "vid-2", 0)
	f.client.errs["vid-1"] = errors.New("network down")

	result, err := f.orchestrator().Run(ctx, 0)
	if err == nil {
		t.Fatal("expected abort error")
	}
	if result.Attempted != 1 {
		t.Fatalf("attempted = %d, want 1", result.Attempted)
	}
	untouched, _ := f.store.VideoByID(ctx, "vid-2")
	if untouched.State != catalog.StateNew {
		t.Fatalf("vid-2 state = %s", untouched.State)
	}
}

func TestRunWakesExpiredSleepers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)
	if _, err := f.store.Sleep(ctx, "vid-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	result, err := f.orchestrator().Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Woken != 1 || result.Downloaded != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestRunScopedToChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alpha, _ := f.store.AddChannel(ctx, "alpha", catalog.KindUser, "")
	beta, _ := f.store.AddChannel(ctx, "beta", catalog.KindUser, "")
	f.addVideo(t, "vid-a", alpha.ID)
	f.addVideo(t, "vid-b", beta.ID)

	result, err := f.orchestrator().Run(ctx, alpha.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Attempted != 1 || result.Downloaded != 1 {
		t.Fatalf("result = %+v", result)
	}
	other, _ := f.store.VideoByID(ctx, "vid-b")
	if other.State != catalog.StateNew {
		t.Fatalf("vid-b state = %s", other.State)
	}
}

func TestRunDispatchesDownloadEventAfterCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addVideo(t, "vid-1", 0)

	var observed catalog.State
	f.dispatcher.Register([]string{hooks.EventDownload}, "check", func(ctx context.Context, event hooks.Event) error {
		// The record must already be committed when the hook fires.
		video, err := f.store.VideoByID(ctx, event.VideoID())
		if err != nil {
			return err
		}
		observed = video.State
		return nil
	})

	if _, err := f.orchestrator().Run(ctx, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if observed != catalog.StateDownloaded {
		t.Fatalf("hook observed state %q", observed)
	}
}
