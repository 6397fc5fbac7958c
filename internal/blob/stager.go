// Package blob stages uploaded payload bytes for the duration of the
// processing window. Staged objects are removed when the owning request
// reaches a terminal state; nothing here is durable storage.
package blob

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrNotStaged = errors.New("payload not staged")

// Stager holds payload bytes keyed by request id.
type Stager interface {
	Put(ctx context.Context, id uuid.UUID, payload []byte) error
	Get(ctx context.Context, id uuid.UUID) ([]byte, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

// MemoryStager keeps staged payloads in process memory.
type MemoryStager struct {
	mu       sync.RWMutex
	payloads map[uuid.UUID][]byte
}

func NewMemoryStager() *MemoryStager {
	return &MemoryStager{payloads: make(map[uuid.UUID][]byte)}
}

func (s *MemoryStager) Put(_ context.Context, id uuid.UUID, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[id] = append([]byte(nil), payload...)
	return nil
}

func (s *MemoryStager) Get(_ context.Context, id uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payloads[id]
	if !ok {
		return nil, ErrNotStaged
	}
	return append([]byte(nil), p...), nil
}

func (s *MemoryStager) Remove(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payloads, id)
	return nil
}

var _ Stager = (*MemoryStager)(nil)
