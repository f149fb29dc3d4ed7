package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	logger      *slog.Logger
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
	started     bool
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:      logger,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup. Caches that do not
// expire entries themselves (Redis does) are skipped.
func (m *Manager) Register(c any) {
	if cl, ok := c.(Cleaner); ok {
		m.caches = append(m.caches, cl)
	}
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "component", "cache", "count", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// CleanNow runs one cleanup pass and returns the number of removed entries.
func (m *Manager) CleanNow() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop gracefully stops the cleanup routine
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		if m.started {
			<-m.cleanupDone
		}
	})
}
