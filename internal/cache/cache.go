// Package cache provides caching for datasets, query results and rendered images.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Config contains cache configuration.
type Config struct {
	ImageCacheSizeMB int
	ImageTTL         time.Duration
	QueryCacheSize   int
}

// Manager manages the rendered image and query result caches.
type Manager struct {
	imageCache *bigcache.BigCache
	queryCache *lru.Cache[string, []byte]
}

// NewManager creates a new cache manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.ImageTTL <= 0 {
		cfg.ImageTTL = 10 * time.Minute
	}
	if cfg.ImageCacheSizeMB <= 0 {
		cfg.ImageCacheSizeMB = 64
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = 1000
	}

	imageCacheConfig := bigcache.Config{
		Shards:             64,
		LifeWindow:         cfg.ImageTTL,
		CleanWindow:        cfg.ImageTTL / 2,
		MaxEntriesInWindow: 1000,
		MaxEntrySize:       256 * 1024, // charts and map snapshots
		HardMaxCacheSize:   cfg.ImageCacheSizeMB,
		Verbose:            false,
	}

	imageCache, err := bigcache.New(context.Background(), imageCacheConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}

	queryCache, err := lru.New[string, []byte](cfg.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Manager{
		imageCache: imageCache,
		queryCache: queryCache,
	}, nil
}

// GetImage retrieves a rendered image from cache.
func (m *Manager) GetImage(key string) ([]byte, bool) {
	data, err := m.imageCache.Get(key)
	if err != nil {
		return nil, false
	}
	return data, true
}

// SetImage stores a rendered image in cache.
func (m *Manager) SetImage(key string, data []byte) error {
	return m.imageCache.Set(key, data)
}

// GetQuery retrieves a query result from cache.
func (m *Manager) GetQuery(key string) ([]byte, bool) {
	return m.queryCache.Get(key)
}

// SetQuery stores a query result in cache.
func (m *Manager) SetQuery(key string, data []byte) {
	m.queryCache.Add(key, data)
}

// SelectionKey generates a cache key for a resolved filter selection.
func SelectionKey(kind, region, cercle, commune, zoneID string) string {
	return fmt.Sprintf("%s:%q/%q/%q/%q", kind, region, cercle, commune, zoneID)
}

// ImageKey generates a cache key for a rendered image from the values that
// determine its content.
func ImageKey(kind string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "\x00")))
	return kind + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Stats returns cache statistics.
func (m *Manager) Stats() map[string]interface{} {
	return map[string]interface{}{
		"image_cache_len": m.imageCache.Len(),
		"image_cache_cap": m.imageCache.Capacity(),
		"query_cache_len": m.queryCache.Len(),
	}
}

// Close closes the cache manager.
func (m *Manager) Close() error {
	return m.imageCache.Close()
}
