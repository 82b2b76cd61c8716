package mirror

import (
	"context"
	"sync"

	"github.com/stockpulse/paper-engine/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewMemoryStore creates a new in-memory mirror.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (*model.SimulatedAccount, bool, error) {
	s.mu.RLock()
	data, ok := s.snapshots[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	account, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}

func (s *MemoryStore) Save(_ context.Context, userID string, account *model.SimulatedAccount) error {
	data, err := encode(account)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snapshots[userID] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.snapshots, userID)
	s.mu.Unlock()
	return nil
}
