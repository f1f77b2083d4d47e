package state

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps snapshots in process memory for single-instance mode.
// Params: snapshot map with per-key revisions.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]memorySnapshot
}

type memorySnapshot struct {
	snap     Snapshot
	revision uint64
}

// NewMemoryStore creates in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]memorySnapshot)}
}

// Get returns snapshot payload and revision.
// Params: store key.
// Returns: stored snapshot, revision, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, key string) (Snapshot, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.snapshots[key]
	if !ok {
		return Snapshot{}, 0, ErrNotFound
	}
	return entry.snap, entry.revision, nil
}

// Put writes snapshot payload unconditionally.
// Params: store key and snapshot.
// Returns: new revision.
func (s *MemoryStore) Put(_ context.Context, key string, snap Snapshot) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rev := s.snapshots[key].revision + 1
	s.snapshots[key] = memorySnapshot{snap: snap, revision: rev}
	return rev, nil
}

// Delete removes snapshot; missing keys are ignored.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, key)
	return nil
}

// ListKeys lists keys by prefix in lexical order.
// Params: key prefix (empty lists everything).
// Returns: matching keys.
func (s *MemoryStore) ListKeys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0)
	for key := range s.snapshots {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases memory store resources.
func (s *MemoryStore) Close() error {
	return nil
}
