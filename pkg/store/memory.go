package store

import (
	"context"
	"sync"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/models"
)

// MemoryStore is an in-process Store used in tests and embedded setups.
// Records are deep-copied on every read and write so callers never share
// state with the store.
type MemoryStore struct {
	mu           sync.RWMutex
	intents      map[string]*models.RouteIntent
	transactions map[string]*models.Transaction
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents:      make(map[string]*models.RouteIntent),
		transactions: make(map[string]*models.Transaction),
	}
}

func (s *MemoryStore) PutIntent(_ context.Context, intent *models.RouteIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[intent.ID] = intent.Clone()
	return nil
}

func (s *MemoryStore) GetIntent(_ context.Context, id string) (*models.RouteIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	intent, ok := s.intents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return intent.Clone(), nil
}

func (s *MemoryStore) ListIntentsByStatus(_ context.Context, status models.Status) ([]*models.RouteIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RouteIntent
	for _, intent := range s.intents {
		if intent.Status == status {
			out = append(out, intent.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) PutTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[tx.ID] = tx.Clone()
	return nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tx.Clone(), nil
}

func (s *MemoryStore) ListTransactionsByStatus(_ context.Context, status models.Status) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, tx := range s.transactions {
		if tx.Status == status {
			out = append(out, tx.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateIntentAndTransaction(_ context.Context, intent *models.RouteIntent, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[intent.ID] = intent.Clone()
	s.transactions[tx.ID] = tx.Clone()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
