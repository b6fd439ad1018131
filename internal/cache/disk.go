package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/tonelab/supertonic/tts/audio"
)

const indexFile = "cache.index"

// AudioCache is a two-tier store for finished WAV buffers. It satisfies the
// synthesizer's Cache interface and is safe for concurrent use.
type AudioCache struct {
	dir      string
	capacity int64
	maxAge   time.Duration

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu     sync.Mutex
	memory *memoryTier
	index  map[string]*diskEntry
	size   int64
	closed bool
	stats  Stats
}

// diskEntry is one row of the persisted index. Fields are exported for gob.
type diskEntry struct {
	Key        string
	FileName   string
	Size       int64 // compressed bytes on disk
	Original   int64 // uncompressed buffer bytes
	Timestamp  time.Time
	LastAccess time.Time
	Hits       int64
}

// New opens (or creates) an audio cache rooted at cfg.Dir, loading any
// existing index. A corrupt or missing index starts empty; stale entries
// past cfg.MaxAge are dropped immediately.
func New(cfg Config) (*AudioCache, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache directory not set")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(cfg.CompressionLevel)))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	c := &AudioCache{
		dir:      cfg.Dir,
		capacity: cfg.MaxBytes,
		maxAge:   cfg.MaxAge,
		encoder:  encoder,
		decoder:  decoder,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: cfg.MaxBytes},
	}
	if cfg.MemoryBytes > 0 {
		c.memory = newMemoryTier(cfg.MemoryBytes)
	}

	if err := c.loadIndex(); err != nil {
		c.index = make(map[string]*diskEntry)
	}
	c.pruneExpired(time.Now().Add(-c.maxAge))
	c.recalculate()
	return c, nil
}

// Get returns the cached buffer for key, checking memory before disk. A
// disk hit is promoted into the memory tier.
func (c *AudioCache) Get(key string) (audio.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, false
	}

	if c.memory != nil {
		if buf, ok := c.memory.get(key); ok {
			c.stats.Hits++
			c.stats.LastAccess = time.Now()
			return buf, true
		}
	}

	entry, ok := c.index[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if c.maxAge > 0 && time.Since(entry.Timestamp) > c.maxAge {
		c.removeEntry(key, entry)
		c.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(c.dir, entry.FileName))
	if err != nil {
		c.removeEntry(key, entry)
		c.stats.Misses++
		return nil, false
	}
	buf, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		c.removeEntry(key, entry)
		c.stats.Misses++
		return nil, false
	}

	entry.LastAccess = time.Now()
	entry.Hits++
	c.stats.Hits++
	c.stats.LastAccess = entry.LastAccess

	if c.memory != nil {
		c.memory.put(key, buf)
	}
	return buf, true
}

// Put stores a finished buffer under key, compressing it onto disk and
// evicting least-recently-used entries until it fits.
func (c *AudioCache) Put(key string, buf audio.Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	compressed := c.encoder.EncodeAll(buf, nil)
	diskSize := int64(len(compressed))
	if diskSize > c.capacity {
		return fmt.Errorf("%w: %d compressed bytes, capacity %d", ErrItemTooLarge, diskSize, c.capacity)
	}

	if existing, ok := c.index[key]; ok {
		c.removeEntry(key, existing)
	}
	for c.size+diskSize > c.capacity && len(c.index) > 0 {
		c.evictOldest()
	}

	name := fileName(key)
	if err := writeAtomic(filepath.Join(c.dir, name), compressed); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	now := time.Now()
	c.index[key] = &diskEntry{
		Key:        key,
		FileName:   name,
		Size:       diskSize,
		Original:   int64(len(buf)),
		Timestamp:  now,
		LastAccess: now,
	}
	c.size += diskSize

	if c.memory != nil {
		c.memory.put(key, buf)
	}
	return nil
}

// Delete removes key from both tiers. Deleting an absent key is a no-op.
func (c *AudioCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if entry, ok := c.index[key]; ok {
		c.removeEntry(key, entry)
	} else if c.memory != nil {
		c.memory.delete(key)
	}
	return nil
}

// Clear removes every entry and persists the empty index.
func (c *AudioCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	for key, entry := range c.index {
		c.removeEntry(key, entry)
	}
	return c.saveIndex()
}

// Prune drops entries older than maxAge and reports how many were removed.
func (c *AudioCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}
	return c.pruneExpired(time.Now().Add(-maxAge))
}

// Stats returns a snapshot of the cache counters.
func (c *AudioCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.size
	stats.ItemCount = int64(len(c.index))
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Close persists the index. Further operations return ErrClosed (Get
// reports a miss).
func (c *AudioCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	err := c.saveIndex()
	c.encoder.Close()
	c.decoder.Close()
	return err
}

// Callers hold c.mu for everything below.

func (c *AudioCache) removeEntry(key string, entry *diskEntry) {
	os.Remove(filepath.Join(c.dir, entry.FileName))
	c.size -= entry.Size
	delete(c.index, key)
	if c.memory != nil {
		c.memory.delete(key)
	}
}

func (c *AudioCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.index {
		if oldestKey == "" || entry.LastAccess.Before(oldest) {
			oldestKey = key
			oldest = entry.LastAccess
		}
	}
	if oldestKey != "" {
		c.removeEntry(oldestKey, c.index[oldestKey])
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}
}

func (c *AudioCache) pruneExpired(cutoff time.Time) int {
	removed := 0
	for key, entry := range c.index {
		if entry.Timestamp.Before(cutoff) {
			c.removeEntry(key, entry)
			removed++
		}
	}
	return removed
}

func (c *AudioCache) recalculate() {
	c.size = 0
	for _, entry := range c.index {
		c.size += entry.Size
	}
}

func (c *AudioCache) loadIndex() error {
	file, err := os.Open(filepath.Join(c.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()
	return gob.NewDecoder(file).Decode(&c.index)
}

func (c *AudioCache) saveIndex() error {
	path := filepath.Join(c.dir, indexFile)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(file).Encode(c.index)
	closeErr := file.Close()
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if closeErr != nil {
		os.Remove(tmp)
		return closeErr
	}
	return os.Rename(tmp, path)
}

func fileName(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + ".zst"
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
