package fetch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"reel/internal/config"
	"reel/internal/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LibraryDir = t.TempDir()
	return &cfg
}

func TestBuildArgs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.CookieFile = "/tmp/cookies.txt"
	client := NewClient(cfg, logging.NewNop())

	args := client.buildArgs(Request{VideoID: "vid", BaseName: "Title-vid"})
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"--output Title-vid.%(ext)s",
		"--merge-output-format mkv",
		"--retries 10",
		"--limit-rate 900000",
		"--cookies /tmp/cookies.txt",
		"--write-thumbnail",
		"--embed-metadata",
		"--write-info-json",
		"--write-description",
		"--write-annotations",
		"https://www.youtube.com/watch?v=vid",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args %q missing %q", joined, want)
		}
	}
}

func TestBuildArgsMinimal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Downloader.RateLimit = 0
	cfg.Downloader.WriteThumbnails = false
	cfg.Downloader.EmbedMetadata = false
	cfg.Downloader.WriteInfoJSON = false
	cfg.Downloader.WriteDescription = false
	cfg.Downloader.WriteAnnotations = false

	client := NewClient(cfg, logging.NewNop())
	joined := strings.Join(client.buildArgs(Request{VideoID: "vid", BaseName: "n"}), " ")

	for _, unwanted := range []string{"--limit-rate", "--cookies", "--write-thumbnail", "--write-info-json"} {
		if strings.Contains(joined, unwanted) {
			t.Errorf("args %q should not contain %q", joined, unwanted)
		}
	}
}

func TestDownloadSuccess(t *testing.T) {
	cfg := testConfig(t)
	client := NewClient(cfg, logging.NewNop())
	outDir := filepath.Join(cfg.Paths.LibraryDir, "channel")

	restore := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		// Simulate a finished merge landing in the working directory.
		return exec.CommandContext(ctx, "sh", "-c", "echo downloading && touch 'Title-vid.mkv'")
	}
	defer func() { commandContext = restore }()

	result, err := client.Download(context.Background(), Request{
		VideoID:   "vid",
		OutputDir: outDir,
		BaseName:  "Title-vid",
	})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if result.Path != filepath.Join(outDir, "Title-vid.mkv") {
		t.Fatalf("path = %q", result.Path)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("result file missing: %v", err)
	}
}

func TestDownloadFailureClassified(t *testing.T) {
	cfg := testConfig(t)
	client := NewClient(cfg, logging.NewNop())

	restore := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo 'ERROR: Premieres in 2 hours' >&2; exit 1")
	}
	defer func() { commandContext = restore }()

	_, err := client.Download(context.Background(), Request{
		VideoID:   "vid",
		OutputDir: cfg.Paths.LibraryDir,
		BaseName:  "Title-vid",
	})
	if _, ok := IsUnavailable(err); !ok {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
}

func TestLocateMedia(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"clip.webm", "clip.info.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	path, ok := LocateMedia(dir, "clip", "mkv")
	if !ok || filepath.Base(path) != "clip.webm" {
		t.Fatalf("LocateMedia = %q, %v", path, ok)
	}

	// The preferred extension wins when present.
	if err := os.WriteFile(filepath.Join(dir, "clip.mkv"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	path, ok = LocateMedia(dir, "clip", "mkv")
	if !ok || filepath.Base(path) != "clip.mkv" {
		t.Fatalf("LocateMedia = %q, %v", path, ok)
	}

	if _, ok := LocateMedia(dir, "absent", "mkv"); ok {
		t.Fatal("LocateMedia found a file that does not exist")
	}
}
