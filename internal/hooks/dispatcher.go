package hooks

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Callback observes one lifecycle event. A callback may be registered for
// several event names and can branch on Event.Name. Errors are logged and
// swallowed: hooks are notification, not control, so a failing callback
// never aborts the operation that fired it.
type Callback func(ctx context.Context, event Event) error

type registration struct {
	name string
	fn   Callback
}

// Dispatcher is an explicit, ordered, synchronous event registry. It is
// populated once at process start from the configured extension list and is
// not safe for concurrent registration afterwards; dispatch itself is
// read-only and callable from the single processing goroutine.
type Dispatcher struct {
	byEvent  map[string][]registration
	disabled atomic.Bool
	logger   *slog.Logger
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		byEvent: make(map[string][]registration),
		logger:  logger,
	}
}

// Register adds a callback for every listed event name, preserving
// registration order for delivery.
func (d *Dispatcher) Register(events []string, name string, fn Callback) {
	if fn == nil {
		return
	}
	for _, event := range events {
		if event == "" {
			continue
		}
		d.byEvent[event] = append(d.byEvent[event], registration{name: name, fn: fn})
	}
}

// SetDisabled toggles the run-wide no-hooks switch. Checked once per
// dispatch call, not per callback.
func (d *Dispatcher) SetDisabled(disabled bool) {
	d.disabled.Store(disabled)
}

// Disabled reports whether dispatch is currently suspended.
func (d *Dispatcher) Disabled() bool {
	return d.disabled.Load()
}

// Dispatch invokes every callback registered for the event, in registration
// order, inline on the caller's goroutine. All callbacks run before Dispatch
// returns; a slow callback delays the caller by design.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	if d.disabled.Load() {
		return
	}
	for _, reg := range d.byEvent[event.Name] {
		if err := reg.fn(ctx, event); err != nil {
			d.logger.Warn("hook callback failed",
				"event", event.Name,
				"hook", reg.name,
				"video", event.VideoID(),
				"error", err,
			)
		}
	}
}

// Registered returns the callback names listening on an event, in order.
func (d *Dispatcher) Registered(event string) []string {
	regs := d.byEvent[event]
	names := make([]string, 0, len(regs))
	for _, reg := range regs {
		names = append(names, reg.name)
	}
	return names
}
