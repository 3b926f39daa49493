package cache

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	DefaultTTL        = 24 * time.Hour
	FacetTTL          = 7 * 24 * time.Hour
	defaultMaxEntries = 10000
	defaultMaxBytes   = 256 << 20 // heuristic ceiling, not an allocator limit

	// Eviction removes the oldest ~10% of tracked keys by insertion time.
	// This is a best-effort memory guard, not a strict LRU.
	evictFraction = 0.10
)

type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
	hits      int64
	size      int64
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	Sets           int64   `json:"sets"`
	Deletes        int64   `json:"deletes"`
	Evictions      int64   `json:"evictions"`
	EntryCount     int     `json:"entry_count"`
	EstimatedBytes int64   `json:"estimated_bytes"`
	HitRatio       float64 `json:"hit_ratio"`
}

// VectorCache is an in-process TTL cache for embeddings and derived values.
// Expired entries are never returned; entries may be evicted before expiry
// when the entry count or estimated memory exceeds the configured ceilings.
// Safe for concurrent use. On any internal fault it degrades to a
// pass-through: Get reports a miss, Set reports false.
type VectorCache struct {
	mu sync.Mutex

	entries    map[string]*entry
	defaultTTL time.Duration
	maxEntries int
	maxBytes   int64

	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
	bytes     int64

	now func() time.Time // override in tests
}

type VectorCacheOption func(*VectorCache)

func WithDefaultTTL(ttl time.Duration) VectorCacheOption {
	return func(c *VectorCache) { c.defaultTTL = ttl }
}

func WithMaxEntries(n int) VectorCacheOption {
	return func(c *VectorCache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

func WithMaxBytes(n int64) VectorCacheOption {
	return func(c *VectorCache) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

func WithClock(now func() time.Time) VectorCacheOption {
	return func(c *VectorCache) { c.now = now }
}

func NewVectorCache(opts ...VectorCacheOption) *VectorCache {
	c := &VectorCache{
		entries:    make(map[string]*entry),
		defaultTTL: DefaultTTL,
		maxEntries: defaultMaxEntries,
		maxBytes:   defaultMaxBytes,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *VectorCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.removeLocked(key, e)
		c.misses++
		return nil, false
	}
	e.hits++
	c.hits++
	return e.value, true
}

// Set stores val under key. ttl <= 0 uses the cache default.
func (c *VectorCache) Set(key string, val any, ttl time.Duration) bool {
	if key == "" {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if old, ok := c.entries[key]; ok {
		c.bytes -= old.size
	}
	e := &entry{
		value:     val,
		createdAt: now,
		expiresAt: now.Add(ttl),
		size:      estimateSize(val),
	}
	c.entries[key] = e
	c.bytes += e.size
	c.sets++

	if len(c.entries) > c.maxEntries || c.bytes > c.maxBytes {
		c.evictOldestLocked()
	}
	return true
}

func (c *VectorCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(key, e)
	c.deletes++
	return true
}

func (c *VectorCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.now().After(e.expiresAt) {
		c.removeLocked(key, e)
		return false
	}
	return true
}

func (c *VectorCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:           c.hits,
		Misses:         c.misses,
		Sets:           c.sets,
		Deletes:        c.deletes,
		Evictions:      c.evictions,
		EntryCount:     len(c.entries),
		EstimatedBytes: c.bytes,
		HitRatio:       ratio,
	}
}

// Flush drops every entry. Counters are kept.
func (c *VectorCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.bytes = 0
}

func (c *VectorCache) removeLocked(key string, e *entry) {
	delete(c.entries, key)
	c.bytes -= e.size
}

// evictOldestLocked drops the oldest ~10% of tracked keys by creation time.
func (c *VectorCache) evictOldestLocked() {
	n := int(float64(len(c.entries)) * evictFraction)
	if n < 1 {
		n = 1
	}

	type aged struct {
		key       string
		createdAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, createdAt: e.createdAt})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].createdAt.Equal(all[j].createdAt) {
			return all[i].key < all[j].key
		}
		return all[i].createdAt.Before(all[j].createdAt)
	})

	for i := 0; i < n && i < len(all); i++ {
		if e, ok := c.entries[all[i].key]; ok {
			c.removeLocked(all[i].key, e)
			c.evictions++
		}
	}
}

// estimateSize is a capacity-guard heuristic, not real memory accounting:
// strings count ~2 bytes per char, numeric vectors 8 bytes per element,
// everything else the length of its JSON form plus fixed overhead.
func estimateSize(v any) int64 {
	const overhead = 64
	switch t := v.(type) {
	case nil:
		return overhead
	case string:
		return overhead + int64(len(t))*2
	case []float32:
		return overhead + int64(len(t))*8
	case []float64:
		return overhead + int64(len(t))*8
	case int, int32, int64, float32, float64, bool:
		return overhead + 8
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return overhead
		}
		return overhead + int64(len(b))
	}
}
