// Package cache keeps analysis results keyed by error-message fingerprint and
// persists them through a flat string store.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/dotcommander/errfix/internal/models"
)

// DefaultCapacity bounds the number of cached results.
const DefaultCapacity = 100

const (
	entryPrefix = "cache/"
	keysKey     = "cache/keys"
)

// KV is the persistent string store the cache writes through.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// prefixDeleter is optionally implemented by stores that can sweep a key range.
type prefixDeleter interface {
	DeletePrefix(prefix string) (int64, error)
}

// Fingerprint hashes the message text only, so identical messages raised from
// different call sites share one entry.
func Fingerprint(message string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(message))
}

// Cache is a bounded fingerprint → result map, loaded lazily from KV on first use.
//
// Eviction at capacity removes one unspecified entry (Go map iteration order).
// Callers must not rely on which entry goes.
type Cache struct {
	kv       KV
	capacity int

	mu      sync.Mutex
	loaded  bool
	entries map[string]*models.AnalysisResult
}

// New returns a Cache over kv. capacity <= 0 uses DefaultCapacity.
func New(kv KV, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		kv:       kv,
		capacity: capacity,
		entries:  make(map[string]*models.AnalysisResult),
	}
}

// Get returns a copy of the cached result for message.
func (c *Cache) Get(message string) (*models.AnalysisResult, bool) {
	if message == "" {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded()

	r, ok := c.entries[Fingerprint(message)]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Put stores result under message's fingerprint and persists it together with
// the updated key index. Empty message or nil result is a no-op.
func (c *Cache) Put(message string, result *models.AnalysisResult) {
	if message == "" || result == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded()

	key := Fingerprint(message)
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOne()
	}
	c.entries[key] = result.Clone()
	c.saveEntry(key, result)
	c.saveKeys()
}

// ClearAll deletes every persisted entry and the key index. The cache stays
// loaded (and empty) afterwards.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.persistedKeys() {
		if err := c.kv.Delete(entryPrefix + key); err != nil {
			slog.Warn("cache entry delete failed", "key", key, "error", err)
		}
	}
	if err := c.kv.Delete(keysKey); err != nil {
		slog.Warn("cache index delete failed", "error", err)
	}
	// Sweep entries orphaned by an interrupted write.
	if pd, ok := c.kv.(prefixDeleter); ok {
		if _, err := pd.DeletePrefix(entryPrefix); err != nil {
			slog.Warn("cache sweep failed", "error", err)
		}
	}

	c.entries = make(map[string]*models.AnalysisResult)
	c.loaded = true
	slog.Info("cache cleared")
}

// Count returns the number of loaded entries, loading from KV if needed.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded()
	return len(c.entries)
}

// Capacity returns the configured bound.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Keys returns the loaded fingerprints in no particular order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoaded()
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	return out
}

func (c *Cache) ensureLoaded() {
	if c.loaded {
		return
	}
	c.loaded = true

	for _, key := range c.persistedKeys() {
		raw, ok, err := c.kv.Get(entryPrefix + key)
		if err != nil {
			slog.Warn("cache entry read failed", "key", key, "error", err)
			continue
		}
		if !ok || raw == "" {
			continue
		}
		var r *models.AnalysisResult
		if err := json.Unmarshal([]byte(raw), &r); err != nil || r == nil {
			slog.Warn("cache entry corrupt, ignoring", "key", key, "error", err)
			continue
		}
		r.Normalize()
		c.entries[key] = r
		if len(c.entries) >= c.capacity {
			break
		}
	}
}

func (c *Cache) persistedKeys() []string {
	raw, ok, err := c.kv.Get(keysKey)
	if err != nil {
		slog.Warn("cache index read failed", "error", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		slog.Warn("cache index corrupt, ignoring", "error", err)
		return nil
	}
	return keys
}

func (c *Cache) evictOne() {
	for key := range c.entries {
		delete(c.entries, key)
		if err := c.kv.Delete(entryPrefix + key); err != nil {
			slog.Warn("cache eviction delete failed", "key", key, "error", err)
		}
		return
	}
}

func (c *Cache) saveEntry(key string, result *models.AnalysisResult) {
	b, err := json.Marshal(result)
	if err != nil {
		slog.Warn("cache entry encode failed", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(entryPrefix+key, string(b)); err != nil {
		slog.Warn("cache entry write failed", "key", key, "error", err)
	}
}

func (c *Cache) saveKeys() {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	b, err := json.Marshal(keys)
	if err != nil {
		return
	}
	if err := c.kv.Set(keysKey, string(b)); err != nil {
		slog.Warn("cache index write failed", "error", err)
	}
}
