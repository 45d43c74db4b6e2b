package flagstore

import (
	"context"
	"sync"
	"time"

	"github.com/dgellow/auth-front/internal/log"
)

// cleanupInterval is how often expired flags are swept.
const cleanupInterval = 1 * time.Minute

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps intent flags in process memory. Suitable for tests and
// single-process deployments where losing flags on restart is acceptable.
type MemoryStore struct {
	mu            sync.RWMutex
	entries       map[string]entry
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// NewMemoryStore creates a memory store with the given flag TTL and starts
// the background sweep. ttl <= 0 disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:       make(map[string]entry),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
	}

	go s.cleanupLoop()

	return s
}

// Stop stops the background sweep. Call when shutting down.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		s.cleanupTicker.Stop()
		close(s.stopCleanup)
	})
}

func (s *MemoryStore) Get(_ context.Context, clientID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[clientID]
	if !ok || e.expired(s.ttl, time.Now()) {
		return "", nil
	}
	return e.Value, nil
}

func (s *MemoryStore) Set(_ context.Context, clientID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[clientID] = entry{Value: value, SetAt: time.Now()}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, clientID)
	return nil
}

func (s *MemoryStore) cleanupLoop() {
	for {
		select {
		case <-s.cleanupTicker.C:
			s.cleanup()
		case <-s.stopCleanup:
			return
		}
	}
}

// cleanup removes expired flags so abandoned flows don't accumulate.
func (s *MemoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	expired := 0
	for id, e := range s.entries {
		if e.expired(s.ttl, now) {
			delete(s.entries, id)
			expired++
		}
	}

	if expired > 0 {
		log.LogDebugWithFields("flagstore", "Swept expired intent flags", map[string]any{
			"count": expired,
		})
	}
}
