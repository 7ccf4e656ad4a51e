package syncer_test

import (
	"context"
	"errors"
	"testing"

	"reel/internal/catalog"
	"reel/internal/feed"
	"reel/internal/hooks"
	"reel/internal/logging"
	"reel/internal/syncer"
	"reel/internal/testsupport"
)

type fakeEnumerator struct {
	listing *feed.Listing
	err     error
	calls   int
}

func (f *fakeEnumerator) Enumerate(ctx context.Context, ch *catalog.Channel) (*feed.Listing, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.listing, nil
}

func fullListing(ids ...string) *feed.Listing {
	listing := &feed.Listing{Title: "Example", Complete: true}
	for i, id := range ids {
		listing.Entries = append(listing.Entries, feed.Entry{
			ID:       id,
			Title:    "Title " + id,
			Position: i,
			Duration: 60,
			Uploader: "Example",
		})
	}
	return listing
}

func feedListing(ids ...string) *feed.Listing {
	listing := fullListing(ids...)
	listing.Complete = false
	return listing
}

func newSyncer(t *testing.T, rss, full syncer.Enumerator) (*syncer.Syncer, *catalog.Store, *hooks.Dispatcher) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	dispatcher := hooks.NewDispatcher(logging.NewNop())
	return syncer.New(store, rss, full, dispatcher, logging.NewNop()), store, dispatcher
}

func addChannel(t *testing.T, store *catalog.Store) *catalog.Channel {
	t.Helper()
	ch, err := store.AddChannel(context.Background(), "creator", catalog.KindUser, "")
	if err != nil {
		t.Fatal(err)
	}
	return ch
}

func TestFirstSyncUsesFullListing(t *testing.T) {
	rss := &fakeEnumerator{listing: feedListing("vid-1")}
	full := &fakeEnumerator{listing: fullListing("vid-1", "vid-2")}
	engine, store, _ := newSyncer(t, rss, full)
	ch := addChannel(t, store)

	result, err := engine.SyncChannel(context.Background(), ch)
	if err != nil {
		t.Fatalf("SyncChannel: %v", err)
	}
	if rss.calls != 0 || full.calls != 1 {
		t.Fatalf("rss calls = %d, full calls = %d", rss.calls, full.calls)
	}
	if result.Added != 2 || !result.Complete {
		t.Fatalf("result = %+v", result)
	}

	videos, err := store.VideosForChannel(context.Background(), ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(videos) != 2 || videos[0].ID != "vid-1" || videos[0].State != catalog.StateNew {
		t.Fatalf("videos = %+v", videos)
	}
	if videos[0].Duration != 60 || videos[0].Uploader != "Example" {
		t.Fatalf("details missing: %+v", videos[0])
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	full := &fakeEnumerator{listing: fullListing("vid-1", "vid-2")}
	engine, store, _ := newSyncer(t, nil, full)
	ch := addChannel(t, store)

	if _, err := engine.SyncChannel(context.Background(), ch); err != nil {
		t.Fatal(err)
	}
	refreshed, err := store.ChannelByID(context.Background(), ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	result, err := engine.SyncChannel(context.Background(), refreshed)
	if err != nil {
		t.Fatal(err)
	}
	if result.Added != 0 || result.Updated != 0 {
		t.Fatalf("second sync changed things: %+v", result)
	}
}

func TestIncrementalSyncViaFeed(t *testing.T) {
	full := &fakeEnumerator{listing: fullListing("vid-1", "vid-2")}
	engine, store, _ := newSyncer(t, nil, full)
	ch := addChannel(t, store)
	if _, err := engine.SyncChannel(context.Background(), ch); err != nil {
		t.Fatal(err)
	}

	// Second sync: the feed window covers the gap (oldest feed entry known).
	rss := &fakeEnumerator{listing: feedListing("vid-3", "vid-2")}
	full2 := &fakeEnumerator{listing: fullListing("vid-1", "vid-2", "vid-3")}
	engine2 := syncer.New(store, rss, full2, hooks.NewDispatcher(logging.NewNop()), logging.NewNop())

	refreshed, err := store.ChannelByID(context.Background(), ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	result, err := engine2.SyncChannel(context.Background(), refreshed)
	if err != nil {
		t.Fatal(err)
	}
	if rss.calls != 1 || full2.calls != 0 {
		t.Fatalf("rss calls = %d, full calls = %d", rss.calls, full2.calls)
	}
	if result.Added != 1 || result.Complete {
		t.Fatalf("result = %+v", result)
	}

	// The discovered feed URL is cached for the next run.
	cached, err := store.ChannelByID(context.Background(), ch.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cached.RSSURL == "" {
		t.Fatal("feed url not cached")
	}
}

func TestFeedGapFallsBackToFullListing(t *testing.T) {
	full := &fakeEnumerator{listing: fullListing("vid-1")}
	engine, store, _ := newSyncer(t, nil, full)
	ch := addChannel(t, store)
	if _, err := engine.SyncChannel(context.Background(), ch); err != nil {
		t.Fatal(err)
	}

	// Every feed entry is unknown, so videos older than the window may be
	// missing too; the full lister must run.
	rss := &fakeEnumerator{listing: feedListing("vid-9", "vid-8")}
	full2 := &fakeEnumerator{listing: fullListing("vid-1", "vid-8", "vid-9")}
	engine2 := syncer.New(store, rss, full2, hooks.NewDispatcher(logging.NewNop()), logging.NewNop())

	refreshed, _ := store.ChannelByID(context.Background(), ch.ID)
	result, err := engine2.SyncChannel(context.Background(), refreshed)
	if err != nil {
		t.Fatal(err)
	}
	if full2.calls != 1 {
		t.Fatal("full lister did not run on feed gap")
	}
	if result.Added != 2 || !result.Complete {
		t.Fatalf("result = %+v", result)
	}
}

func TestRSSFailureFallsBack(t *testing.T) {
	full := &fakeEnumerator{listing: fullListing("vid-1")}
	engine, store, _ := newSyncer(t, nil, full)
	ch := addChannel(t, store)
	if _, err := engine.SyncChannel(context.Background(), ch); err != nil {
		t.Fatal(err)
	}

	rss := &fakeEnumerator{err: errors.New("feed unreachable")}
	full2 := &fakeEnumerator{listing: fullListing("vid-1", "vid-2")}
	engine2 := syncer.New(store, rss, full2, hooks.NewDispatcher(logging.NewNop()), logging.NewNop())

	refreshed, _ := store.ChannelByID(context.Background(), ch.ID)
	result, err := engine2.SyncChannel(context.Background(), refreshed)
	if err != nil {
		t.Fatalf("SyncChannel should survive a feed failure: %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("result = %+v", result)
	}
}

func TestTitleChangeDoesNotRename(t *testing.T) {
	full := &fakeEnumerator{listing: fullListing("vid-1")}
	engine, store, _ := newSyncer(t, nil, full)
	ch := addChannel(t, store)
	if _, err := engine.SyncChannel(context.Background(), ch); err != nil {
		t.Fatal(err)
	}

	before, _ := store.VideoByID(context.Background(), "vid-1")

	renamed := fullListing("vid-1")
	renamed.Entries[0].Title = "Retitled"
	engine2 := syncer.New(store, nil, &fakeEnumerator{listing: renamed}, hooks.NewDispatcher(logging.NewNop()), logging.NewNop())
	refreshed, _ := store.ChannelByID(context.Background(), ch.ID)
	result, err := engine2.SyncChannel(context.Background(), refreshed)
	if err != nil {
		t.Fatal(err)
	}
	if result.Updated != 1 {
		t.Fatalf("result = %+v", result)
	}

	after, _ := store.VideoByID(context.Background(), "vid-1")
	if after.Title != "Retitled" {
		t.Fatalf("title = %q", after.Title)
	}
	// The resolved name only moves on an explicit update-names run.
	if after.Name != before.Name {
		t.Fatalf("name changed implicitly: %q -> %q", before.Name, after.Name)
	}
}

func TestDelistedVideoKeepsRecord(t *testing.T) {
	full := &fakeEnumerator{listing: fullListing("vid-1", "vid-2")}
	engine, store, _ := newSyncer(t, nil, full)
	ch := addChannel(t, store)
	if _, err := engine.SyncChannel(context.Background(), ch); err != nil {
		t.Fatal(err)
	}

	engine2 := syncer.New(store, nil, &fakeEnumerator{listing: fullListing("vid-2")}, hooks.NewDispatcher(logging.NewNop()), logging.NewNop())
	refreshed, _ := store.ChannelByID(context.Background(), ch.ID)
	if _, err := engine2.SyncChannel(context.Background(), refreshed); err != nil {
		t.Fatal(err)
	}

	gone, err := store.VideoByID(context.Background(), "vid-1")
	if err != nil {
		t.Fatal(err)
	}
	if gone == nil {
		t.Fatal("delisted video was deleted")
	}
	if gone.Position != -1 {
		t.Fatalf("position = %d, want -1", gone.Position)
	}
}

func TestSyncDispatchesAddEvents(t *testing.T) {
	full := &fakeEnumerator{listing: fullListing("vid-1", "vid-2")}
	engine, store, dispatcher := newSyncer(t, nil, full)
	ch := addChannel(t, store)

	var added []string
	dispatcher.Register([]string{hooks.EventAdd}, "collect", func(ctx context.Context, event hooks.Event) error {
		added = append(added, event.VideoID())
		return nil
	})

	if _, err := engine.SyncChannel(context.Background(), ch); err != nil {
		t.Fatal(err)
	}
	if len(added) != 2 || added[0] != "vid-1" {
		t.Fatalf("add events = %v", added)
	}
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.AddChannel(ctx, "alpha", catalog.KindUser, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddChannel(ctx, "beta", catalog.KindUser, ""); err != nil {
		t.Fatal(err)
	}

	full := &selectiveEnumerator{fail: "alpha", listing: fullListing("vid-1")}
	engine := syncer.New(store, nil, full, hooks.NewDispatcher(logging.NewNop()), logging.NewNop())

	results, err := engine.SyncAll(ctx)
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if len(results) != 1 || results[0].Channel != "beta" {
		t.Fatalf("results = %+v", results)
	}

	// The healthy channel was still synced.
	beta, _ := store.ChannelByRef(ctx, "beta")
	videos, _ := store.VideosForChannel(ctx, beta.ID)
	if len(videos) != 1 {
		t.Fatalf("beta videos = %d", len(videos))
	}
}

type selectiveEnumerator struct {
	fail    string
	listing *feed.Listing
}

func (s *selectiveEnumerator) Enumerate(ctx context.Context, ch *catalog.Channel) (*feed.Listing, error) {
	if ch.Name == s.fail {
		return nil, errors.New("listing failed")
	}
	return s.listing, nil
}
