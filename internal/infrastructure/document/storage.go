package document

import (
	"context"
	"sync"

	"github.com/facturio/backend/internal/domain/shared"
)

// Storage persists rendered documents keyed by object path
// (e.g. "invoices/INV-2025-0007.pdf").
type Storage interface {
	// Store writes the document, overwriting any previous version
	Store(ctx context.Context, key string, data []byte, contentType string) error

	// Fetch reads a stored document. Returns shared.ErrNotFound when
	// the key does not exist.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether a document is stored under the key
	Exists(ctx context.Context, key string) (bool, error)
}

// MemoryStorage is an in-memory Storage for tests and development
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStorage creates an empty in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

// Store writes the document into the map
func (s *MemoryStorage) Store(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = buf
	return nil
}

// Fetch reads a stored document
func (s *MemoryStorage) Fetch(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, shared.ErrNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Exists reports whether the key is present
func (s *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

var _ Storage = (*MemoryStorage)(nil)
