// Package cache provides the injectable table cache the ingestion service
// uses to avoid re-normalizing the same upload. Eviction is size-bounded LRU
// plus TTL expiry; a Manager runs periodic cleanup for every registered cache.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Cache is the generic cache contract the service depends on. Keeping it an
// interface keeps the eviction policy swappable and the service testable.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Key derives the cache key for one normalization call: the content digest
// plus the options that change the outcome. Two uploads of the same bytes
// with a different delimiter or encoding are different cache entries.
func Key(raw []byte, delimiter rune, encoding string) string {
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s:%c:%s", hex.EncodeToString(sum[:]), delimiter, encoding)
}

// Cleaner is implemented by caches that support expiry sweeps.
type Cleaner interface {
	CleanExpired() int
}

// Manager owns the periodic cleanup of all registered caches.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewManager creates a cache manager.
func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the cleanup rotation.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins sweeping expired entries on the given interval.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, c := range m.caches {
				c.CleanExpired()
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop halts the cleanup routine and waits for it to finish.
func (m *Manager) Stop() {
	close(m.stopCleanup)
	<-m.cleanupDone
}
