package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// File-backed cache of Goldmark-rendered post HTML. The key includes
// the post's UpdatedAt timestamp, so a stale entry is simply never hit
// again after an edit; ClearOld reaps the leftovers.

var root = "cache"

// SetRoot overrides the cache directory (used by tests).
func SetRoot(dir string) {
	root = dir
}

// Path returns the cache file path for a rendered post.
func Path(slug string, updatedAt time.Time) string {
	hash := generateHash(slug + updatedAt.UTC().Format(time.RFC3339Nano))
	return filepath.Join(root, fmt.Sprintf("%s_%s.html", slug, hash[:16]))
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

func ensureDir() error {
	return os.MkdirAll(root, 0755)
}

// Write stores rendered HTML for a post.
func Write(slug string, updatedAt time.Time, html string) error {
	if err := ensureDir(); err != nil {
		return err
	}
	return os.WriteFile(Path(slug, updatedAt), []byte(html), 0644)
}

// Read returns the rendered HTML for a post if a fresh entry exists.
func Read(slug string, updatedAt time.Time) (string, bool) {
	content, err := os.ReadFile(Path(slug, updatedAt))
	if err != nil {
		return "", false
	}
	return string(content), true
}

// Clear removes every cached rendering of a slug, whatever timestamp
// it was keyed with. Called on post update and delete.
func Clear(slug string) error {
	pattern := filepath.Join(root, slug+"_*.html")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ClearOld removes cache files older than the specified duration.
func ClearOld(maxAge time.Duration) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if info.IsDir() {
			return nil
		}

		if !strings.HasSuffix(path, ".html") {
			return nil
		}

		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}

		return nil
	})
}
