package session

import (
	"context"
	"sort"
	"sync"

	stderr "github.com/pkg/errors"
)

// ErrNotFound is returned by a Store when no blob exists for an id
var ErrNotFound = stderr.New("session not found")

// Store persists serialized sessions. The Manager owns the sessions,
// a Store only mirrors them so they survive restarts
type Store interface {
	Save(ctx context.Context, id string, blob []byte) error
	Load(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([][]byte, error)
}

// MemoryStore is a Store that keeps sessions in memory
type MemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryStore creates a new empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Save implementation of Store for MemoryStore
func (s *MemoryStore) Save(ctx context.Context, id string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[id] = append([]byte(nil), blob...)
	return nil
}

// Load implementation of Store for MemoryStore
func (s *MemoryStore) Load(ctx context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok := s.blobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

// Delete implementation of Store for MemoryStore
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, id)
	return nil
}

// List implementation of Store for MemoryStore. Blobs are returned
// in id order
func (s *MemoryStore) List(ctx context.Context) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.blobs))
	for id := range s.blobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	blobs := make([][]byte, 0, len(ids))
	for _, id := range ids {
		blobs = append(blobs, append([]byte(nil), s.blobs[id]...))
	}
	return blobs, nil
}
