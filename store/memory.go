package store

import (
	"sync"

	"github.com/vitalvas/autodoc/openapi"
)

// MemoryStore keeps both documents in memory, serialized as JSON. The
// staged document does not survive the process.
type MemoryStore struct {
	mu         sync.Mutex
	staged     []byte
	production []byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

// SaveStaged implements DocumentStore.
func (s *MemoryStore) SaveStaged(doc *openapi.Document) error {
	data, err := JSONCodec{}.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = data
	return nil
}

// LoadStaged implements DocumentStore.
func (s *MemoryStore) LoadStaged() (*openapi.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staged == nil {
		return nil, nil
	}
	return JSONCodec{}.Unmarshal(s.staged)
}

// ClearStaged implements DocumentStore.
func (s *MemoryStore) ClearStaged() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staged = nil
	return nil
}

// Commit implements DocumentStore.
func (s *MemoryStore) Commit(doc *openapi.Document) error {
	data, err := JSONCodec{}.Marshal(doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.production = data
	s.staged = nil
	return nil
}

// ReadProduction implements DocumentStore.
func (s *MemoryStore) ReadProduction() (*openapi.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.production == nil {
		return nil, ErrProductionMissing
	}
	return JSONCodec{}.Unmarshal(s.production)
}
