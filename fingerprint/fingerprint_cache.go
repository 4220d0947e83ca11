package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/meysamhadeli/docai/internal/fileutil"
	"github.com/meysamhadeli/docai/models"
)

// DefaultCacheFileName is the cache file written at the repository root.
const DefaultCacheFileName = "docstring_cache.json"

// Cache maps repository-relative paths to the SHA-256 of their last processed content.
type Cache struct {
	hashes map[string]string
	mutex  sync.RWMutex
	stats  *CacheStats
}

// CacheStats tracks what the last FilterChanged pass saw.
type CacheStats struct {
	Checked    int
	Changed    int
	Unchanged  int
	Unreadable int
	LastCheck  time.Time
}

// Fingerprint returns the hex-encoded SHA-256 of content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{hashes: make(map[string]string), stats: &CacheStats{}}
}

// Load reads the cache file. A missing file yields an empty cache.
func Load(cachePath string) (*Cache, error) {
	cache := New()

	data, err := os.ReadFile(cachePath)
	if os.IsNotExist(err) {
		return cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file %s: %w", cachePath, err)
	}

	if len(data) == 0 {
		return cache, nil
	}

	if err := json.Unmarshal(data, &cache.hashes); err != nil {
		return nil, fmt.Errorf("failed to decode cache file %s: %w", cachePath, err)
	}
	if cache.hashes == nil {
		cache.hashes = make(map[string]string)
	}
	return cache, nil
}

// Get returns the cached hash for relPath.
func (c *Cache) Get(relPath string) (string, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	hash, ok := c.hashes[models.NormalizePath(relPath)]
	return hash, ok
}

// Update records hash as the processed state of relPath.
func (c *Cache) Update(relPath, hash string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.hashes[models.NormalizePath(relPath)] = hash
}

// Refresh rehashes relPath from disk and stores the result.
func (c *Cache) Refresh(root, relPath string) (string, error) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return "", fmt.Errorf("failed to rehash %s: %w", relPath, err)
	}
	hash := Fingerprint(content)
	c.Update(relPath, hash)
	return hash, nil
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.hashes)
}

// Records returns the cache content sorted by path.
func (c *Cache) Records() []models.FileRecord {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	records := make([]models.FileRecord, 0, len(c.hashes))
	for path, hash := range c.hashes {
		records = append(records, models.FileRecord{Path: path, ContentHash: hash})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records
}

// FilterChanged returns the files whose current content hash differs from, or is
// missing in, the cache. Files that cannot be read are logged and left out: they
// are neither changed nor unchanged for this run.
func (c *Cache) FilterChanged(root string, files []string) []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stats := CacheStats{LastCheck: time.Now()}
	changed := make([]string, 0, len(files))

	for _, file := range files {
		stats.Checked++
		relPath := models.NormalizePath(file)

		content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
		if err != nil {
			stats.Unreadable++
			slog.Warn("skipping unreadable file", slog.String("file", relPath), slog.String("error", err.Error()))
			continue
		}

		if cached, ok := c.hashes[relPath]; ok && cached == Fingerprint(content) {
			stats.Unchanged++
			continue
		}

		stats.Changed++
		changed = append(changed, relPath)
	}

	*c.stats = stats
	return changed
}

// Stats returns a copy of the last FilterChanged statistics.
func (c *Cache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return *c.stats
}

// Commit rewrites the whole cache file.
func (c *Cache) Commit(cachePath string) error {
	c.mutex.RLock()
	// json.Marshal sorts map keys, which keeps the file diff-friendly.
	data, err := json.MarshalIndent(c.hashes, "", "  ")
	c.mutex.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}

	if err := fileutil.WriteFileAtomically(cachePath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", cachePath, err)
	}
	return nil
}

// Reset removes the cache file so the next run treats every file as changed.
func Reset(cachePath string) error {
	if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file %s: %w", cachePath, err)
	}
	return nil
}

// FileStats describes the on-disk cache for the reset-cache command.
func FileStats(cachePath string) (map[string]interface{}, error) {
	stats := map[string]interface{}{
		"cache_file": cachePath,
		"exists":     false,
	}

	info, err := os.Stat(cachePath)
	if os.IsNotExist(err) {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat cache file: %w", err)
	}

	cache, err := Load(cachePath)
	if err != nil {
		return nil, err
	}

	stats["exists"] = true
	stats["entries"] = cache.Len()
	stats["total_size"] = info.Size()
	stats["mod_time"] = info.ModTime()
	return stats, nil
}
