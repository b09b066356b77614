// Package cache provides the content-addressed audio cache: a mapping
// from (normalized text, voice settings) to previously synthesized
// artifacts, with LRU eviction under a byte budget and lazy TTL expiry.
package cache

import (
	"bytes"
	"container/list"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/chatframe/voice/internal/vtypes"
)

// DefaultBytesPerSecond is the assumed artifact bitrate used for size
// estimation: 128 kbit/s, i.e. 16000 bytes per second of audio. Coarse
// but deterministic, which is what the eviction accounting needs.
const DefaultBytesPerSecond = 16000

// Config holds cache tuning knobs.
type Config struct {
	MaxBytes       int64         // byte budget for the size estimate sum
	TTL            time.Duration // 0 disables age expiry
	BytesPerSecond int64         // 0 means DefaultBytesPerSecond
}

// Stats reports cache behavior counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Entries   int
	Size      int64
	Capacity  int64
}

type entry struct {
	key        string
	result     *vtypes.SynthesisResult
	size       int64
	createdAt  time.Time
	lastAccess time.Time
}

// persisted is the gob shape written to the backing store.
type persisted struct {
	Result     vtypes.SynthesisResult
	CreatedAt  time.Time
	LastAccess time.Time
}

// Cache is the audio cache. All operations take a single critical
// section, so concurrent callers never observe partial updates to the
// entry map or the running size counter.
type Cache struct {
	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List // front = most recently used
	size  int64

	cfg   Config
	store Store
	stats Stats
}

// New creates a cache over the given backing store. A nil store falls
// back to a MemoryStore. If the store can enumerate keys, surviving
// entries are loaded back into the index.
func New(cfg Config, store Store) (*Cache, error) {
	if cfg.BytesPerSecond <= 0 {
		cfg.BytesPerSecond = DefaultBytesPerSecond
	}
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Cache{
		items: make(map[string]*list.Element),
		lru:   list.New(),
		cfg:   cfg,
		store: store,
	}
	if lister, ok := store.(Lister); ok {
		if err := c.reload(lister); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Key computes the stable cache key for a normalized text and settings
// pair. Settings are rounded to two decimals so float noise does not
// split otherwise identical requests.
func Key(text string, s vtypes.VoiceSettings) string {
	s = s.Clamped()
	data := fmt.Sprintf("%s|%s|%.2f|%.2f|%.2f",
		text, s.VoiceProfile, s.Expressiveness, s.GuidanceWeight, s.Speed)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:16])
}

// Get returns the cached result for key, refreshing its recency. Entries
// past the TTL are purged and reported as misses.
func (c *Cache) Get(key string) (*vtypes.SynthesisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	ent := elem.Value.(*entry)
	if c.cfg.TTL > 0 && time.Since(ent.createdAt) > c.cfg.TTL {
		c.removeLocked(elem)
		c.stats.Expired++
		c.stats.Misses++
		return nil, false
	}

	c.lru.MoveToFront(elem)
	ent.lastAccess = time.Now()
	c.stats.Hits++
	return ent.result, true
}

// Put stores a result under key, evicting least-recently-used entries
// until the size estimate fits the byte budget. The write also goes to
// the backing store so durable stores survive restarts.
func (c *Cache) Put(key string, result *vtypes.SynthesisResult) error {
	if result == nil {
		return fmt.Errorf("cannot cache nil result")
	}
	now := time.Now()
	size := c.estimate(result)

	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		c.size += size - ent.size
		ent.result = result
		ent.size = size
		ent.createdAt = now
		ent.lastAccess = now
		c.lru.MoveToFront(elem)
	} else {
		for c.cfg.MaxBytes > 0 && c.size+size > c.cfg.MaxBytes && c.lru.Len() > 0 {
			c.evictOldestLocked()
		}
		ent := &entry{key: key, result: result, size: size, createdAt: now, lastAccess: now}
		c.items[key] = c.lru.PushFront(ent)
		c.size += size
	}
	c.mu.Unlock()

	data, err := encodeEntry(&persisted{Result: *result, CreatedAt: now, LastAccess: now})
	if err != nil {
		return err
	}
	if err := c.store.Set(key, data); err != nil {
		return fmt.Errorf("cache store write failed: %w", err)
	}
	return nil
}

// Delete drops an entry from the index and the backing store.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.removeLocked(elem)
	}
	c.mu.Unlock()
	return c.store.Delete(key)
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.size = 0
	c.mu.Unlock()

	for _, k := range keys {
		if err := c.store.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.items)
	s.Size = c.size
	s.Capacity = c.cfg.MaxBytes
	return s
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) estimate(result *vtypes.SynthesisResult) int64 {
	secs := result.Duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	return int64(secs * float64(c.cfg.BytesPerSecond))
}

func (c *Cache) evictOldestLocked() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	ent := elem.Value.(*entry)
	c.removeLocked(elem)
	c.stats.Evictions++
	// Best effort: an orphaned store entry only wastes disk until the
	// next reload prunes it against the budget.
	_ = c.store.Delete(ent.key)
}

func (c *Cache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.lru.Remove(elem)
	delete(c.items, ent.key)
	c.size -= ent.size
}

// reload rebuilds the index from a durable store, dropping entries that
// no longer fit the TTL or budget.
func (c *Cache) reload(lister Lister) error {
	keys, err := lister.Keys()
	if err != nil {
		return fmt.Errorf("cache reload failed: %w", err)
	}
	now := time.Now()
	for _, key := range keys {
		data, ok, err := c.store.Get(key)
		if err != nil || !ok {
			continue
		}
		p, err := decodeEntry(data)
		if err != nil {
			_ = c.store.Delete(key)
			continue
		}
		if c.cfg.TTL > 0 && now.Sub(p.CreatedAt) > c.cfg.TTL {
			_ = c.store.Delete(key)
			continue
		}
		result := p.Result
		size := c.estimate(&result)
		for c.cfg.MaxBytes > 0 && c.size+size > c.cfg.MaxBytes && c.lru.Len() > 0 {
			c.evictOldestLocked()
		}
		ent := &entry{key: key, result: &result, size: size, createdAt: p.CreatedAt, lastAccess: p.LastAccess}
		c.items[key] = c.lru.PushBack(ent)
		c.size += size
	}
	return nil
}

func encodeEntry(p *persisted) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode cache entry: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (*persisted, error) {
	var p persisted
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &p, nil
}
