// Package blob provides key-value blob backends for locally persisted state.
package blob

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrNotFound      = errors.New("blob not found")
	ErrQuotaExceeded = errors.New("blob quota exceeded")
)

// Store is a key-value blob store addressed by string keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps blobs in process. A positive MaxBytes rejects any single
// value larger than the limit with ErrQuotaExceeded.
type MemoryStore struct {
	MaxBytes int

	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemoryStore(maxBytes int) *MemoryStore {
	return &MemoryStore{MaxBytes: maxBytes, blobs: map[string][]byte{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	if s.MaxBytes > 0 && len(value) > s.MaxBytes {
		return ErrQuotaExceeded
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blobs == nil {
		s.blobs = map[string][]byte{}
	}
	s.blobs[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}
