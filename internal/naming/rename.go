package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RenameArtifacts renames every file in dir whose name contains videoID so
// its prefix becomes newBase, preserving whatever trails the id (extensions,
// sidecar suffixes like .info.json or .description). Returns the renamed
// paths. Files already carrying the target name are left alone.
func RenameArtifacts(dir, videoID, newBase string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+videoID+"*"))
	if err != nil {
		return nil, fmt.Errorf("glob artifacts: %w", err)
	}

	var renamed []string
	for _, path := range matches {
		base := filepath.Base(path)
		idx := strings.LastIndex(base, videoID)
		if idx < 0 {
			continue
		}
		tail := base[idx+len(videoID):]
		dest := filepath.Join(dir, newBase+tail)
		if dest == path {
			continue
		}
		if err := os.Rename(path, dest); err != nil {
			return renamed, fmt.Errorf("rename %s: %w", base, err)
		}
		renamed = append(renamed, dest)
	}
	return renamed, nil
}
