package memory

import (
	"context"
	"sync"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/storage"
)

// ImportBatchStore is an in-memory implementation of storage.ImportBatchStore.
type ImportBatchStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.ImportBatch
}

// NewImportBatchStore creates a new in-memory import batch store.
func NewImportBatchStore() *ImportBatchStore {
	return &ImportBatchStore{
		data: make(map[int64]*domain.ImportBatch),
	}
}

// Compile-time interface check.
var _ storage.ImportBatchStore = (*ImportBatchStore)(nil)

// Create persists a new batch and assigns its ID.
func (s *ImportBatchStore) Create(_ context.Context, b *domain.ImportBatch) error {
	if b == nil || b.Source == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	batchCopy := *b
	batchCopy.ID = s.nextID
	s.data[batchCopy.ID] = &batchCopy
	b.ID = batchCopy.ID
	return nil
}

// Complete records the final counts and completion time for a batch.
func (s *ImportBatchStore) Complete(_ context.Context, b *domain.ImportBatch) error {
	if b == nil || b.ID == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[b.ID]; !exists {
		return storage.ErrNotFound
	}

	batchCopy := *b
	s.data[b.ID] = &batchCopy
	return nil
}

// GetByID retrieves a batch. Returns ErrNotFound if it does not exist.
func (s *ImportBatchStore) GetByID(_ context.Context, id int64) (*domain.ImportBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	batchCopy := *b
	return &batchCopy, nil
}
