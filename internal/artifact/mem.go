package artifact

import (
	"context"
	"sync"
	"time"
)

// MemStore keeps artifacts in process memory. Used for tests and as the
// dev fallback when neither a directory nor redis is configured.
type MemStore struct {
	mu      sync.RWMutex
	entries map[Ref]memEntry
	ttl     time.Duration
	now     func() time.Time
}

type memEntry struct {
	data      []byte
	kind      Kind
	expiresAt time.Time
}

func NewMemStore(ttl time.Duration) *MemStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MemStore{
		entries: make(map[Ref]memEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemStore) Put(_ context.Context, data []byte, kind Kind) (Ref, error) {
	ref := newRef()
	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ref] = memEntry{
		data:      stored,
		kind:      kind,
		expiresAt: s.now().Add(s.ttl),
	}
	return ref, nil
}

func (s *MemStore) Get(_ context.Context, ref Ref) ([]byte, Kind, error) {
	s.mu.RLock()
	e, ok := s.entries[ref]
	s.mu.RUnlock()
	if !ok || s.now().After(e.expiresAt) {
		return nil, "", ErrNotFound
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, e.kind, nil
}

func (s *MemStore) Delete(_ context.Context, ref Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, ref)
	return nil
}

func (s *MemStore) Close() error { return nil }

// StartJanitor sweeps expired entries until ctx is done.
func (s *MemStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *MemStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for ref, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, ref)
		}
	}
}
