package transcode

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func fakeProbeOutput(t *testing.T, payload string) func() {
	t.Helper()
	fixture := filepath.Join(t.TempDir(), "probe.json")
	if err := os.WriteFile(fixture, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	restore := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "cat", fixture)
	}
	return func() { commandContext = restore }
}

func TestInspect(t *testing.T) {
	payload := `{
  "format": {
    "format_name": "matroska,webm",
    "duration": "185.472000",
    "tags": {"title": "Some Video"}
  },
  "chapters": [
    {"start_time": "0.000000", "end_time": "60.000000", "tags": {"title": "Intro"}},
    {"start_time": "60.000000", "end_time": "185.472000", "tags": {"title": "Main"}}
  ]
}`
	defer fakeProbeOutput(t, payload)()

	info, err := NewProber("ffprobe").Inspect(context.Background(), "/lib/video.mkv")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.FormatName != "matroska,webm" {
		t.Fatalf("format = %q", info.FormatName)
	}
	if info.Duration != 185.472 {
		t.Fatalf("duration = %v", info.Duration)
	}
	if len(info.Chapters) != 2 || info.Chapters[0].Title != "Intro" || info.Chapters[1].Start != 60 {
		t.Fatalf("chapters = %+v", info.Chapters)
	}
	if info.Tags["title"] != "Some Video" {
		t.Fatalf("tags = %+v", info.Tags)
	}
}

func TestInspectCommandFailure(t *testing.T) {
	restore := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "false")
	}
	defer func() { commandContext = restore }()

	if _, err := NewProber("ffprobe").Inspect(context.Background(), "/missing.mkv"); err == nil {
		t.Fatal("expected error when ffprobe fails")
	}
}

func TestAudioCodecArgs(t *testing.T) {
	for ext, wantCodec := range map[string]string{
		".mp3":  "libmp3lame",
		".ogg":  "libvorbis",
		".opus": "libopus",
		".flac": "flac",
		".m4a":  "aac",
	} {
		args, err := audioCodecArgs(ext)
		if err != nil {
			t.Errorf("audioCodecArgs(%s): %v", ext, err)
			continue
		}
		if len(args) < 2 || args[1] != wantCodec {
			t.Errorf("audioCodecArgs(%s) = %v", ext, args)
		}
	}

	if _, err := audioCodecArgs(".wav"); err == nil {
		t.Error("unsupported extension should be rejected")
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(90.5); got != "90.500" {
		t.Fatalf("formatSeconds = %q", got)
	}
	if got := formatSeconds(0); got != "0.000" {
		t.Fatalf("formatSeconds = %q", got)
	}
}
