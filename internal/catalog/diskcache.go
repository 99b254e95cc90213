package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// DefaultMaxAge is the freshness window for cached catalog text.
const DefaultMaxAge = 6 * time.Hour

// DiskCache stores zstd-compressed raw catalog text on disk, keyed by a hash
// of the sorted category set so the same set of categories always maps to the
// same cache slot regardless of request order.
type DiskCache struct {
	dir      string
	maxAge   time.Duration
	maxFiles int
}

// NewDiskCache creates a DiskCache rooted at dir. maxAge <= 0 selects the
// default 6-hour window; maxFiles <= 0 keeps at most 5 files per key.
func NewDiskCache(dir string, maxAge time.Duration, maxFiles int) *DiskCache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &DiskCache{dir: dir, maxAge: maxAge, maxFiles: maxFiles}
}

// Key derives the cache key for a category set: hex SHA-256 of the sorted,
// comma-joined category names.
func Key(categories []string) string {
	sorted := make([]string, len(categories))
	copy(sorted, categories)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(sum[:])[:16]
}

// Write compresses and saves data under the key with the given timestamp,
// then prunes old files for that key beyond maxFiles.
func (c *DiskCache) Write(key string, data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(c.dir, fmt.Sprintf("catalog_%s_%d.tle.zst", key, ts.Unix()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		f.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("flushing cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}

	return c.prune(key)
}

// LoadFresh returns the newest cached text for the key if it is within the
// freshness window. A stale or missing entry returns os.ErrNotExist.
func (c *DiskCache) LoadFresh(key string) ([]byte, time.Time, error) {
	files, err := c.listFiles(key)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, os.ErrNotExist
	}

	latest := files[len(files)-1]
	if time.Since(latest.ts) > c.maxAge {
		return nil, time.Time{}, os.ErrNotExist
	}

	f, err := os.Open(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

func (c *DiskCache) listFiles(key string) ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	prefix := "catalog_" + key + "_"
	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".tle.zst") {
			continue
		}
		tsStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".tle.zst")
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (c *DiskCache) prune(key string) error {
	files, err := c.listFiles(key)
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}
	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}
