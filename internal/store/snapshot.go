package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"leaderhound/internal/types"
)

// DefaultDebugTTL is how long debug artifacts are kept before cleanup.
const DefaultDebugTTL = 48 * time.Hour

// WriteSnapshot writes the full site run to results/current/<domain>.json
// under the given base directory. It returns the written path.
func WriteSnapshot(baseDir string, run *types.SiteRun) (string, error) {
	dir := filepath.Join(baseDir, "results", "current")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	path := filepath.Join(dir, safeFilename(run.Domain)+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// safeFilename keeps domains usable as filenames.
func safeFilename(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "site"
	}
	return b.String()
}

// CleanupDebugLogs removes files under dir older than the TTL. A zero TTL
// uses the default. Missing directories are not an error.
func CleanupDebugLogs(dir string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultDebugTTL
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read debug dir: %w", err)
	}

	cutoff := time.Now().Add(-ttl)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}
