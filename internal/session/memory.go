package session

import (
	"context"
	"sync"
	"time"
)

// entry is a stored state with its expiry.
type entry struct {
	state     State
	expiresAt time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// MemoryStore keeps conversation state in process memory. Abandoned
// conversations are dropped by a janitor goroutine once their TTL passes.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]*entry
	ttl     time.Duration
	now     func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
	done            chan struct{}
}

// NewMemoryStore creates a memory store and starts its janitor.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	interval := time.Minute
	if ttl > 0 && ttl < interval {
		interval = ttl
	}
	return newMemoryStore(ttl, interval)
}

func newMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries:         make(map[int64]*entry),
		ttl:             ttl,
		now:             time.Now,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
		done:            make(chan struct{}),
	}

	go s.cleanup()

	return s
}

// Get returns the user's state.
func (s *MemoryStore) Get(ctx context.Context, userID int64) (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[userID]
	if !ok || (s.ttl > 0 && e.isExpired(s.now())) {
		return State{}, ErrNoState
	}
	return copyState(e.state), nil
}

// Set stores the user's state.
func (s *MemoryStore) Set(ctx context.Context, userID int64, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st = copyState(st)
	st.UpdatedAt = now
	s.entries[userID] = &entry{state: st, expiresAt: now.Add(s.ttl)}
	return nil
}

// Clear removes the user's state.
func (s *MemoryStore) Clear(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, userID)
	return nil
}

// Len returns the number of stored conversations, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the janitor and waits for it to exit.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	<-s.done
	return nil
}

func (s *MemoryStore) cleanup() {
	defer close(s.done)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) removeExpired() {
	if s.ttl <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if e.isExpired(now) {
			delete(s.entries, id)
		}
	}
}

func copyState(st State) State {
	if st.Data == nil {
		return st
	}
	data := make(map[string]string, len(st.Data))
	for k, v := range st.Data {
		data[k] = v
	}
	st.Data = data
	return st
}
