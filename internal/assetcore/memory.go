package assetcore

import (
	"log"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryMonitor sizes a soft concurrency budget for chunked-upload sessions
// against available system memory. The budget is advertised to clients by
// the upload config endpoint; UploadSessionManager does not enforce it.
// Adapted from the teacher's
// internal/utils/memory/memory_monitor.go: chunk-size tiers are dropped
// (the session ceiling is fixed at MaxUploadSize, §4.4) and the surviving
// concern is purely "how many concurrent sessions should we admit".
type MemoryMonitor struct {
	mu            sync.Mutex
	cacheDuration time.Duration
	cached        int
	cachedAt      time.Time
}

// NewMemoryMonitor constructs a monitor with a 30s config cache, matching
// the teacher's cache duration.
func NewMemoryMonitor() *MemoryMonitor {
	return &MemoryMonitor{cacheDuration: 30 * time.Second}
}

// MaxConcurrentSessions returns how many chunked-upload sessions should be
// admitted concurrently, scaled down as available memory shrinks.
func (m *MemoryMonitor) MaxConcurrentSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cachedAt.IsZero() && time.Since(m.cachedAt) < m.cacheDuration {
		return m.cached
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("[UploadSession] memory probe failed, using default concurrency budget: %v", err)
		m.cached = 4
		m.cachedAt = time.Now()
		return m.cached
	}

	availableMB := int64(vm.Available) / 1024 / 1024
	var budget int
	switch {
	case availableMB > 4096:
		budget = 32
	case availableMB > 2048:
		budget = 16
	case availableMB > 1024:
		budget = 8
	default:
		budget = 4
	}

	m.cached = budget
	m.cachedAt = time.Now()
	log.Printf("[UploadSession] available=%dMB, max_concurrent_sessions=%d", availableMB, budget)
	return budget
}
