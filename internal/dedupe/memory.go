package dedupe

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how many inserts may happen between lazy sweeps.
const sweepEvery = 256

type memoryEntry struct {
	at time.Time
	// leaseUntil is set while the key is claimed and not yet recorded.
	leaseUntil time.Time
}

func (e memoryEntry) claimed() bool { return !e.leaseUntil.IsZero() }

// MemoryStore keeps processed keys in process memory. Entries older than the
// TTL are ignored by Seen and dropped lazily on insert or by Evict.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[Key]memoryEntry
	inserts int
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the time source used to judge expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[Key]memoryEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Seen(_ context.Context, key Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.claimed() {
		return false, nil
	}
	if s.expired(e.at, s.now()) {
		delete(s.entries, key)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Record(_ context.Context, key Key, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insert(key, memoryEntry{at: at})
	return nil
}

// Claim lets routers sharing one MemoryStore agree on a single owner.
func (s *MemoryStore) Claim(_ context.Context, key Key, at time.Time, lease time.Duration) (ClaimState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[key]; ok {
		switch {
		case e.claimed() && now.Before(e.leaseUntil):
			return ClaimBusy, nil
		case !e.claimed() && !s.expired(e.at, now):
			return ClaimDone, nil
		}
	}

	s.insert(key, memoryEntry{at: at, leaseUntil: now.Add(lease)})
	return ClaimAcquired, nil
}

func (s *MemoryStore) Release(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.claimed() {
		delete(s.entries, key)
	}
	return nil
}

func (s *MemoryStore) Evict(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweep(before), nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// insert must be called with mu held.
func (s *MemoryStore) insert(key Key, e memoryEntry) {
	s.entries[key] = e
	s.inserts++
	if s.ttl > 0 && s.inserts >= sweepEvery {
		s.inserts = 0
		s.sweep(s.now().Add(-s.ttl))
	}
}

func (s *MemoryStore) expired(at, now time.Time) bool {
	return s.ttl > 0 && !at.After(now.Add(-s.ttl))
}

// sweep must be called with mu held. Live claims are kept.
func (s *MemoryStore) sweep(before time.Time) int {
	now := s.now()
	n := 0
	for k, e := range s.entries {
		if e.claimed() && now.Before(e.leaseUntil) {
			continue
		}
		if e.at.Before(before) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}
