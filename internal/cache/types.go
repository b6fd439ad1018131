package cache

import (
	"errors"
	"time"
)

var (
	// ErrItemTooLarge is returned when a buffer alone exceeds the disk
	// capacity.
	ErrItemTooLarge = errors.New("audio buffer too large for cache")

	// ErrClosed is returned for operations after Close.
	ErrClosed = errors.New("cache is closed")
)

// Stats holds cache performance counters.
type Stats struct {
	Capacity  int64 // disk capacity in bytes
	Size      int64 // bytes on disk (compressed)
	ItemCount int64

	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64

	LastAccess time.Time
	LastEvict  time.Time
}

// Config configures an AudioCache. Zero values select defaults.
type Config struct {
	// Dir is the directory cache files and the index live in.
	Dir string

	// MaxBytes bounds the compressed size on disk (default 512 MB).
	MaxBytes int64

	// MaxAge expires entries regardless of size (default 30 days).
	MaxAge time.Duration

	// MemoryBytes bounds the in-memory tier (default 16 MB). Zero keeps
	// the default; negative disables the memory tier.
	MemoryBytes int64

	// CompressionLevel is the zstd level for the disk tier (default 3).
	CompressionLevel int
}

func (c Config) withDefaults() Config {
	if c.MaxBytes == 0 {
		c.MaxBytes = 512 << 20
	}
	if c.MaxAge == 0 {
		c.MaxAge = 30 * 24 * time.Hour
	}
	if c.MemoryBytes == 0 {
		c.MemoryBytes = 16 << 20
	}
	if c.CompressionLevel == 0 {
		c.CompressionLevel = 3
	}
	return c
}
