package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Cache persists the run artifact directory between runs under a
// run-scoped key, with prefix-based fallback restore. The layout is
// one entry directory per key:
//
//	<root>/<key>/manifest
//	<root>/<key>/data/...
type Cache struct {
	root string
}

type manifest struct {
	Key     string    `json:"key"`
	SavedAt time.Time `json:"saved_at"`
	Digest  string    `json:"digest"`
}

func New(root string) (*Cache, error) {
	if root == "" {
		return nil, fmt.Errorf("cache root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache root: %w", err)
	}
	return &Cache{root: root}, nil
}

// Save snapshots dir under key, replacing any previous entry for the key.
func (c *Cache) Save(dir, key string) error {
	if key == "" || strings.ContainsAny(key, "/\\") {
		return fmt.Errorf("invalid cache key: %q", key)
	}

	digest, err := DirDigest(dir)
	if err != nil {
		return err
	}

	entry := filepath.Join(c.root, key)
	tmp := entry + ".tmp"
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}
	if err := copyDir(dir, filepath.Join(tmp, "data")); err != nil {
		return fmt.Errorf("failed to copy artifacts: %w", err)
	}

	data, err := json.Marshal(manifest{Key: key, SavedAt: time.Now().UTC(), Digest: digest})
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tmp, "manifest"), data, 0o644); err != nil {
		return err
	}

	if err := os.RemoveAll(entry); err != nil {
		return err
	}
	return os.Rename(tmp, entry)
}

// Restore populates dir from the entry for key, or failing that, from
// the most recently saved entry matching one of the restoreKeys
// prefixes, tried in order. It returns the key of the entry used, or
// "" when nothing matched.
func (c *Cache) Restore(dir, key string, restoreKeys ...string) (string, error) {
	if m, err := c.readManifest(key); err == nil {
		return m.Key, c.copyOut(key, dir)
	}

	entries, err := c.entries()
	if err != nil {
		return "", err
	}

	for _, prefix := range restoreKeys {
		var best *manifest
		for i := range entries {
			if !strings.HasPrefix(entries[i].Key, prefix) {
				continue
			}
			if best == nil || entries[i].SavedAt.After(best.SavedAt) {
				best = &entries[i]
			}
		}
		if best != nil {
			return best.Key, c.copyOut(best.Key, dir)
		}
	}

	return "", nil
}

func (c *Cache) readManifest(key string) (*manifest, error) {
	data, err := os.ReadFile(filepath.Join(c.root, key, "manifest"))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Cache) entries() ([]manifest, error) {
	dirents, err := os.ReadDir(c.root)
	if err != nil {
		return nil, err
	}

	var entries []manifest
	for _, dirent := range dirents {
		if !dirent.IsDir() {
			continue
		}
		m, err := c.readManifest(dirent.Name())
		if err != nil {
			continue // half-written entry
		}
		entries = append(entries, *m)
	}
	return entries, nil
}

func (c *Cache) copyOut(key, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return copyDir(filepath.Join(c.root, key, "data"), dir)
}

// DirDigest computes a deterministic content hash over the directory:
// sorted relative paths plus file contents. A missing directory hashes
// like an empty one, so a first run compares cleanly against nothing.
func DirDigest(dir string) (string, error) {
	h := sha256.New()

	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return hex.EncodeToString(h.Sum(nil)), nil
		}
		return "", err
	}
	sort.Strings(files)

	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return "", err
		}
		io.WriteString(h, filepath.ToSlash(rel))
		h.Write([]byte{0})

		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", err
		}
		f.Close()
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == src {
				return filepath.SkipAll
			}
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()

		_, err = io.Copy(out, in)
		return err
	})
}
