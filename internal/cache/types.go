// Package cache stores encoded audio keyed by request fingerprint, with a
// fast in-memory LRU tier in front of a compressed on-disk tier.
package cache

import (
	"errors"
	"time"
)

// Common cache errors.
var (
	// ErrItemTooLarge is returned when an item exceeds the tier capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when stored data cannot be read back.
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Stats holds cache performance metrics for one tier or the combined view.
type Stats struct {
	Capacity  int64 `json:"capacity_bytes"`
	Size      int64 `json:"size_bytes"`
	ItemCount int64 `json:"entries"`

	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// Config holds configuration for the cache manager.
type Config struct {
	// Memory tier.
	MemoryCapacity int64

	// Disk tier.
	DiskCapacity     int64
	DiskPath         string
	CompressionLevel int // zstd level; 0 disables compression

	// TTL is how long entries stay valid. The original deployment expired
	// cache files after one day.
	TTL time.Duration

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() *Config {
	return &Config{
		MemoryCapacity:   100 * 1024 * 1024,  // 100MB
		DiskCapacity:     1024 * 1024 * 1024, // 1GB
		CompressionLevel: 3,
		TTL:              24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}
