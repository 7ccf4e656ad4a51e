package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"reel/internal/config"
	"reel/internal/notifications"
)

// commandContext is swapped in tests to avoid spawning real processes.
var commandContext = exec.CommandContext

// LoadExtensions registers every enabled configured extension on the
// dispatcher and applies the run-wide disabled switch. The extension list is
// validated at config load, so malformed entries never reach this point.
func LoadExtensions(cfg *config.Config, logger *slog.Logger, d *Dispatcher) {
	d.SetDisabled(cfg.Hooks.Disabled)

	timeout := time.Duration(cfg.Sync.RequestTimeout) * time.Second
	for _, ext := range cfg.Hooks.Extensions {
		if !ext.Enabled {
			continue
		}
		switch {
		case ext.Command != "":
			d.Register(ext.Events, ext.Name, execCallback(ext.Command))
		case ext.NtfyTopic != "":
			client := notifications.NewClient(ext.NtfyTopic, timeout)
			d.Register(ext.Events, ext.Name, ntfyCallback(client))
		}
	}
}

// execCallback runs a shell command with the event context in the
// environment. Stdout and stderr are discarded; a non-zero exit surfaces as
// the callback error and is logged by the dispatcher.
func execCallback(command string) Callback {
	return func(ctx context.Context, event Event) error {
		cmd := commandContext(ctx, "sh", "-c", command)
		cmd.Env = append(cmd.Environ(),
			"REEL_EVENT="+event.Name,
			"REEL_VIDEO_ID="+event.VideoID(),
			"REEL_CHANNEL="+event.Channel,
			"REEL_PATH="+event.Path,
		)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("run hook command: %w", err)
		}
		return nil
	}
}

func ntfyCallback(client *notifications.Client) Callback {
	return func(ctx context.Context, event Event) error {
		title := "reel " + event.Name
		var parts []string
		if event.Video != nil {
			parts = append(parts, event.Video.Title)
		}
		if event.Channel != "" {
			parts = append(parts, event.Channel)
		}
		if event.Err != nil {
			parts = append(parts, event.Err.Error())
		}
		message := strings.Join(parts, " | ")
		return client.Send(ctx, title, message, tagFor(event.Name))
	}
}

func tagFor(eventName string) string {
	switch eventName {
	case EventDownload:
		return "white_check_mark"
	case EventError:
		return "x"
	case EventSleep:
		return "zzz"
	default:
		return "information_source"
	}
}
