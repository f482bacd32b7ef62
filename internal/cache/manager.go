package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Manager coordinates the memory and disk tiers: reads promote disk hits into
// memory, writes land in memory immediately and on disk asynchronously, and a
// background ticker sweeps expired entries.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache

	config *Config

	cleanupStop chan struct{}
	cleanupWg   sync.WaitGroup
	writeWg     sync.WaitGroup

	mu    sync.Mutex
	stats struct {
		MemoryHits int64
		DiskHits   int64
		Misses     int64
	}
}

// NewManager creates a cache manager with the given configuration and runs a
// startup sweep of expired disk entries.
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.DiskPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("unable to get home directory: %w", err)
		}
		config.DiskPath = filepath.Join(homeDir, ".cache", "piperd", "audio")
	}

	disk, err := NewDiskCache(config.DiskPath, config.DiskCapacity, config.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("unable to create disk cache: %w", err)
	}

	m := &Manager{
		memory:      NewMemoryCache(config.MemoryCapacity),
		disk:        disk,
		config:      config,
		cleanupStop: make(chan struct{}),
	}

	if config.TTL > 0 {
		if removed := disk.RemoveOlderThan(time.Now().Add(-config.TTL)); removed > 0 {
			log.Info("Expired cache entries removed at startup", "count", removed)
		}
	}

	if config.CleanupInterval > 0 {
		m.startCleanup()
	}

	return m, nil
}

// Get retrieves encoded audio by fingerprint, checking memory before disk.
// Disk hits are promoted to the memory tier.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		m.mu.Lock()
		m.stats.MemoryHits++
		m.mu.Unlock()
		return data, true
	}

	if data, ok := m.disk.Get(key); ok {
		m.mu.Lock()
		m.stats.DiskHits++
		m.mu.Unlock()

		if err := m.memory.Put(key, data); err != nil && err != ErrItemTooLarge {
			log.Debug("Cache promotion failed", "key", key, "err", err)
		}
		return data, true
	}

	m.mu.Lock()
	m.stats.Misses++
	m.mu.Unlock()
	return nil, false
}

// Put stores encoded audio under its fingerprint. The memory write is
// synchronous; the disk write happens in the background so the response is
// not held up by compression and IO.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && err != ErrItemTooLarge {
		return fmt.Errorf("memory cache error: %w", err)
	}

	m.writeWg.Add(1)
	go func() {
		defer m.writeWg.Done()
		if err := m.disk.Put(key, value); err != nil && err != ErrItemTooLarge {
			log.Warn("Disk cache write failed", "key", key, "err", err)
		}
	}()

	return nil
}

// Contains reports whether a fingerprint is cached in either tier.
func (m *Manager) Contains(key string) bool {
	if _, ok := m.memory.Get(key); ok {
		return true
	}
	return m.disk.Contains(key)
}

// Delete removes a fingerprint from both tiers.
func (m *Manager) Delete(key string) {
	m.memory.Delete(key)
	m.disk.Delete(key)
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	m.memory.Clear()
	return m.disk.Clear()
}

// StatsReport is the combined cache view served by GET /cache/stats.
type StatsReport struct {
	MemoryHits int64 `json:"memory_hits"`
	DiskHits   int64 `json:"disk_hits"`
	Misses     int64 `json:"misses"`

	Memory Stats `json:"memory"`
	Disk   Stats `json:"disk"`

	MemorySizeHuman string `json:"memory_size"`
	DiskSizeHuman   string `json:"disk_size"`
}

// Stats returns combined metrics across both tiers.
func (m *Manager) Stats() StatsReport {
	m.mu.Lock()
	report := StatsReport{
		MemoryHits: m.stats.MemoryHits,
		DiskHits:   m.stats.DiskHits,
		Misses:     m.stats.Misses,
	}
	m.mu.Unlock()

	report.Memory = m.memory.Stats()
	report.Disk = m.disk.Stats()
	report.MemorySizeHuman = humanize.Bytes(uint64(report.Memory.Size))
	report.DiskSizeHuman = humanize.Bytes(uint64(report.Disk.Size))

	return report
}

// Close stops the cleanup goroutine, waits for in-flight disk writes, and
// persists the disk index.
func (m *Manager) Close() error {
	select {
	case <-m.cleanupStop:
	default:
		close(m.cleanupStop)
	}
	m.cleanupWg.Wait()
	m.writeWg.Wait()

	return m.disk.Close()
}

func (m *Manager) startCleanup() {
	ticker := time.NewTicker(m.config.CleanupInterval)

	m.cleanupWg.Add(1)
	go func() {
		defer m.cleanupWg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.runCleanup()
			case <-m.cleanupStop:
				return
			}
		}
	}()
}

func (m *Manager) runCleanup() {
	if m.config.TTL <= 0 {
		return
	}

	pruned := m.memory.Prune(m.config.TTL)
	removed := m.disk.RemoveOlderThan(time.Now().Add(-m.config.TTL))
	if pruned > 0 || removed > 0 {
		log.Debug("Cache cleanup completed",
			"memory_pruned", pruned,
			"disk_removed", removed,
			"disk_size", humanize.Bytes(uint64(m.disk.Size())))
	}
}
