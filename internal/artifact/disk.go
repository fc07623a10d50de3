package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DiskStore writes artifacts to a dedicated directory. An in-process
// index tracks kind and expiry; the directory is ephemeral and owned
// exclusively by this store, so orphaned files from a previous run are
// cleared on startup.
type DiskStore struct {
	dir string
	ttl time.Duration

	mu    sync.RWMutex
	index map[Ref]diskEntry
}

type diskEntry struct {
	kind      Kind
	expiresAt time.Time
}

func NewDiskStore(dir string, ttl time.Duration) (*DiskStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "parley-artifacts")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	s := &DiskStore{dir: dir, ttl: ttl, index: make(map[Ref]diskEntry)}
	s.clearOrphans()
	return s, nil
}

func (s *DiskStore) Put(_ context.Context, data []byte, kind Kind) (Ref, error) {
	ref := newRef()
	path := s.path(ref)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	s.mu.Lock()
	s.index[ref] = diskEntry{kind: kind, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return ref, nil
}

func (s *DiskStore) Get(_ context.Context, ref Ref) ([]byte, Kind, error) {
	s.mu.RLock()
	e, ok := s.index[ref]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, "", ErrNotFound
	}
	data, err := os.ReadFile(s.path(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("read artifact: %w", err)
	}
	return data, e.kind, nil
}

func (s *DiskStore) Delete(_ context.Context, ref Ref) error {
	s.mu.Lock()
	delete(s.index, ref)
	s.mu.Unlock()
	if err := os.Remove(s.path(ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}

func (s *DiskStore) Close() error { return nil }

// StartJanitor deletes expired artifacts until ctx is done.
func (s *DiskStore) StartJanitor(ctx context.Context, interval time.Duration) {
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

func (s *DiskStore) sweep() {
	now := time.Now()
	var expired []Ref

	s.mu.Lock()
	for ref, e := range s.index {
		if now.After(e.expiresAt) {
			delete(s.index, ref)
			expired = append(expired, ref)
		}
	}
	s.mu.Unlock()

	for _, ref := range expired {
		_ = os.Remove(s.path(ref))
	}
}

func (s *DiskStore) path(ref Ref) string {
	return filepath.Join(s.dir, string(ref)+".bin")
}

func (s *DiskStore) clearOrphans() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) == ".bin" {
			_ = os.Remove(filepath.Join(s.dir, entry.Name()))
		}
	}
}
