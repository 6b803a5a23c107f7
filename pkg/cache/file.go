package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileCache implements a file-based cache for CLI usage.
//
// Every diagram gets one directory holding one file per namespace, so a
// diagram's artifacts, image map and access stamp live side by side and can
// be removed together. Diagram IDs can exceed filesystem name limits, so
// directories are named by the ID's hash with a two-character fan-out level
// above them.
type FileCache struct {
	dir string
}

// NewFileCache creates a file-based cache rooted at the given directory.
// The directory will be created if it doesn't exist.
func NewFileCache(dir string) (Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// Get retrieves a value from the cache.
func (c *FileCache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores a value in the cache. The data lands under a temporary name
// first and is renamed into place, so concurrent readers (a serve process
// sharing the directory with the CLI) never observe partial writes.
func (c *FileCache) Set(ctx context.Context, key Key, data []byte) error {
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Delete removes a value from the cache.
func (c *FileCache) Delete(ctx context.Context, key Key) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close does nothing for file cache.
func (c *FileCache) Close() error {
	return nil
}

// Prune removes every diagram whose access stamp is older than the cutoff.
// Diagrams without a readable stamp are treated as stale; they predate stamp
// tracking or were left behind by an interrupted write, and they re-render on
// the next request anyway.
func (c *FileCache) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	pruned := 0
	err := c.walkEntries(func(entryDir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stamp, err := os.ReadFile(filepath.Join(entryDir, string(NamespaceAccess)))
		if err == nil {
			if last, perr := ParseAccessTime(stamp); perr == nil && !last.Before(olderThan) {
				return nil
			}
		}
		if err := os.RemoveAll(entryDir); err != nil {
			return err
		}
		pruned++
		return nil
	})
	return pruned, err
}

// Wipe removes every entry and returns the number of files removed.
func (c *FileCache) Wipe(ctx context.Context) (int, error) {
	removed := 0
	err := c.walkEntries(func(entryDir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		files, err := os.ReadDir(entryDir)
		if err != nil {
			return err
		}
		if err := os.RemoveAll(entryDir); err != nil {
			return err
		}
		removed += len(files)
		return nil
	})
	return removed, err
}

// walkEntries calls fn with the path of every per-diagram directory.
func (c *FileCache) walkEntries(fn func(entryDir string) error) error {
	fanouts, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, fanout := range fanouts {
		if !fanout.IsDir() {
			continue
		}
		fanoutDir := filepath.Join(c.dir, fanout.Name())
		entries, err := os.ReadDir(fanoutDir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			if err := fn(filepath.Join(fanoutDir, entry.Name())); err != nil {
				return err
			}
		}
		// Drop the fan-out level once it is empty.
		if remaining, err := os.ReadDir(fanoutDir); err == nil && len(remaining) == 0 {
			_ = os.Remove(fanoutDir)
		}
	}
	return nil
}

// path converts a cache key to a file path.
// The diagram's hashed ID names the entry directory, with the first 2 chars
// as a fan-out level to avoid too many directories in one place; the
// namespace names the file inside it.
func (c *FileCache) path(key Key) string {
	hash := Hash([]byte(key.ID))
	return filepath.Join(c.dir, hash[:2], hash[2:], string(key.Namespace))
}

// Ensure FileCache implements Cache and Janitor.
var (
	_ Cache   = (*FileCache)(nil)
	_ Janitor = (*FileCache)(nil)
)
