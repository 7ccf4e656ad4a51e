package hooks

import (
	"context"
	"errors"
	"testing"

	"reel/internal/catalog"
	"reel/internal/logging"
)

func TestDispatchOrder(t *testing.T) {
	d := NewDispatcher(logging.NewNop())

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		d.Register([]string{EventDownload}, name, func(ctx context.Context, event Event) error {
			order = append(order, name)
			return nil
		})
	}

	d.Dispatch(context.Background(), Event{Name: EventDownload})

	if len(order) != 3 || order[0] != "first" || order[1] != "second" || order[2] != "third" {
		t.Fatalf("delivery order = %v", order)
	}
}

func TestDispatchOnlyMatchingEvent(t *testing.T) {
	d := NewDispatcher(logging.NewNop())

	calls := 0
	d.Register([]string{EventDownload, EventError}, "multi", func(ctx context.Context, event Event) error {
		calls++
		return nil
	})

	d.Dispatch(context.Background(), Event{Name: EventDownload})
	d.Dispatch(context.Background(), Event{Name: EventSleep})
	d.Dispatch(context.Background(), Event{Name: EventError})

	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestDispatchSwallowsCallbackErrors(t *testing.T) {
	d := NewDispatcher(logging.NewNop())

	var order []string
	d.Register([]string{EventAdd}, "broken", func(ctx context.Context, event Event) error {
		order = append(order, "broken")
		return errors.New("boom")
	})
	d.Register([]string{EventAdd}, "after", func(ctx context.Context, event Event) error {
		order = append(order, "after")
		return nil
	})

	d.Dispatch(context.Background(), Event{Name: EventAdd})

	// The failing callback must not block the one behind it.
	if len(order) != 2 || order[1] != "after" {
		t.Fatalf("order = %v", order)
	}
}

func TestDisabledDispatcher(t *testing.T) {
	d := NewDispatcher(logging.NewNop())

	called := false
	d.Register([]string{EventDownload}, "hook", func(ctx context.Context, event Event) error {
		called = true
		return nil
	})

	d.SetDisabled(true)
	d.Dispatch(context.Background(), Event{Name: EventDownload})
	if called {
		t.Fatal("disabled dispatcher still delivered")
	}

	d.SetDisabled(false)
	d.Dispatch(context.Background(), Event{Name: EventDownload})
	if !called {
		t.Fatal("re-enabled dispatcher did not deliver")
	}
}

func TestRegistered(t *testing.T) {
	d := NewDispatcher(logging.NewNop())
	d.Register([]string{EventDownload}, "a", func(context.Context, Event) error { return nil })
	d.Register([]string{EventDownload}, "b", func(context.Context, Event) error { return nil })

	names := d.Registered(EventDownload)
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("Registered = %v", names)
	}
	if len(d.Registered(EventSleep)) != 0 {
		t.Fatal("unexpected registrations on sleep")
	}
}

func TestEventVideoID(t *testing.T) {
	if id := (Event{}).VideoID(); id != "" {
		t.Fatalf("empty event VideoID = %q", id)
	}
	event := Event{Video: &catalog.Video{ID: "vid"}}
	if event.VideoID() != "vid" {
		t.Fatalf("VideoID = %q", event.VideoID())
	}
}
