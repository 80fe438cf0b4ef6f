package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/conduit-ai/conduit/pkg/domain"
	"github.com/conduit-ai/conduit/pkg/ports"
)

// Store implements ports.RecordStore in memory.
// Safe for concurrent use. Records are stored serialized so callers can't
// mutate stored state through retained pointers.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte // "<kind>:<id>" -> JSON
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

func key(kind, id string) string {
	return kind + ":" + id
}

// Put persists the record in memory.
func (s *Store) Put(ctx context.Context, kind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key(kind, id)] = data
	return nil
}

// Get loads the record into out.
func (s *Store) Get(ctx context.Context, kind, id string, out any) error {
	s.mu.RLock()
	data, ok := s.data[key(kind, id)]
	s.mu.RUnlock()

	if !ok {
		return domain.ErrRecordNotFound
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key(kind, id))
	return nil
}

// List returns the IDs of all records of the given kind.
func (s *Store) List(ctx context.Context, kind string) ([]string, error) {
	prefix := kind + ":"
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for k := range s.data {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			ids = append(ids, k[len(prefix):])
		}
	}
	return ids, nil
}

var _ ports.RecordStore = (*Store)(nil)
