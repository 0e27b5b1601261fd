package storage

import (
	"container/list"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vjranagit/scandata/pkg/types"
	"github.com/vjranagit/scandata/pkg/value"
)

// CacheConfig holds result cache configuration
type CacheConfig struct {
	Enabled          bool
	TTL              time.Duration
	Capacity         int
	CompressionLevel int
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled:          true,
		TTL:              5 * time.Minute,
		Capacity:         256,
		CompressionLevel: 1,
	}
}

// Key identifies one derived trace. The versions change whenever the chain
// or the repository changes, so an entry is never served stale.
type Key struct {
	Descriptor   types.Descriptor `json:"descriptor"`
	Stages       []string         `json:"stages"`
	ChainVersion uint64           `json:"chain_version"`
	RepoVersion  uint64           `json:"repo_version"`
}

// hash generates a cache key from the request parameters
func (k Key) hash() string {
	data, _ := json.Marshal(k)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// tracePayload is the stored form of a trace
type tracePayload struct {
	Descriptor types.Descriptor `json:"descriptor"`
	Interval   float64          `json:"interval"`
	Count      int              `json:"count"`
	Values     []byte           `json:"values"`
}

// ResultCache caches derived traces in a Store with LRU eviction.
// A nil *ResultCache is a valid, always-missing cache.
type ResultCache struct {
	cfg        *CacheConfig
	store      Store
	compressor *Compressor
	logger     *zap.Logger

	mu     sync.Mutex
	lru    *list.List
	keys   map[string]*list.Element
	hits   uint64
	misses uint64
}

// NewResultCache opens an in-memory result cache. It returns nil when the
// cache is disabled.
func NewResultCache(cfg *CacheConfig, logger *zap.Logger) (*ResultCache, error) {
	if cfg == nil {
		cfg = DefaultCacheConfig()
	}
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.L()
	}

	store, err := NewMemoryStore()
	if err != nil {
		return nil, err
	}
	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	return &ResultCache{
		cfg:        cfg,
		store:      store,
		compressor: compressor,
		logger:     logger,
		lru:        list.New(),
		keys:       make(map[string]*list.Element),
	}, nil
}

// Get returns the cached trace for k
func (rc *ResultCache) Get(k Key) (*value.Trace, bool) {
	if rc == nil {
		return nil, false
	}
	h := k.hash()

	rc.mu.Lock()
	defer rc.mu.Unlock()

	tr, ok := rc.getLocked(h)
	if ok {
		rc.hits++
		rc.lru.MoveToFront(rc.keys[h])
	} else {
		rc.misses++
	}
	return tr, ok
}

func (rc *ResultCache) getLocked(h string) (*value.Trace, bool) {
	if _, tracked := rc.keys[h]; !tracked {
		return nil, false
	}
	raw, ok, err := rc.store.Get([]byte(h))
	if err != nil || !ok {
		// expired in the store
		rc.removeLocked(h)
		return nil, false
	}

	var p tracePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		rc.logger.Warn("dropping unreadable cache entry", zap.Error(err))
		rc.removeLocked(h)
		return nil, false
	}
	vals, err := rc.compressor.DecompressValues(p.Values, p.Count)
	if err != nil {
		rc.logger.Warn("dropping unreadable cache entry", zap.Error(err))
		rc.removeLocked(h)
		return nil, false
	}
	tr, err := value.NewTrace(vals, p.Descriptor, p.Interval)
	if err != nil {
		rc.removeLocked(h)
		return nil, false
	}
	return tr, true
}

// Put stores tr under k
func (rc *ResultCache) Put(k Key, tr *value.Trace) error {
	if rc == nil {
		return nil
	}
	vals := tr.Values()
	compressed, err := rc.compressor.CompressValues(vals)
	if err != nil {
		return fmt.Errorf("failed to compress values: %w", err)
	}
	raw, err := json.Marshal(tracePayload{
		Descriptor: tr.Descriptor(),
		Interval:   tr.Interval(),
		Count:      len(vals),
		Values:     compressed,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	h := k.hash()

	rc.mu.Lock()
	defer rc.mu.Unlock()

	if err := rc.store.Put([]byte(h), raw, rc.cfg.TTL); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if el, ok := rc.keys[h]; ok {
		rc.lru.MoveToFront(el)
		return nil
	}
	rc.keys[h] = rc.lru.PushFront(h)

	// Evict oldest entry if cache is full
	if rc.lru.Len() > rc.cfg.Capacity {
		if oldest := rc.lru.Back(); oldest != nil {
			rc.removeLocked(oldest.Value.(string))
		}
	}
	return nil
}

// removeLocked removes an entry from the cache (must hold lock)
func (rc *ResultCache) removeLocked(h string) {
	if el, ok := rc.keys[h]; ok {
		rc.lru.Remove(el)
		delete(rc.keys, h)
	}
	if err := rc.store.Delete([]byte(h)); err != nil {
		rc.logger.Debug("cache delete failed", zap.Error(err))
	}
}

// Clear clears all cache entries
func (rc *ResultCache) Clear() error {
	if rc == nil {
		return nil
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.lru = list.New()
	rc.keys = make(map[string]*list.Element)
	return rc.store.DropAll()
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size     int
	Capacity int
	Hits     uint64
	Misses   uint64
}

// Stats returns cache statistics
func (rc *ResultCache) Stats() CacheStats {
	if rc == nil {
		return CacheStats{}
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return CacheStats{
		Size:     len(rc.keys),
		Capacity: rc.cfg.Capacity,
		Hits:     rc.hits,
		Misses:   rc.misses,
	}
}

// HitRate returns the cache hit rate as a percentage
func (rc *ResultCache) HitRate() float64 {
	s := rc.Stats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total) * 100.0
}

// Close releases the store and compressor
func (rc *ResultCache) Close() error {
	if rc == nil {
		return nil
	}
	rc.compressor.Close()
	return rc.store.Close()
}
