package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/storage"
)

// RawRowStore is an in-memory implementation of storage.RawRowStore.
type RawRowStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[string]*domain.RawRowRecord // keyed by row_hash
}

// NewRawRowStore creates a new in-memory raw row store.
func NewRawRowStore() *RawRowStore {
	return &RawRowStore{
		data: make(map[string]*domain.RawRowRecord),
	}
}

// Compile-time interface check.
var _ storage.RawRowStore = (*RawRowStore)(nil)

// Insert adds a new raw row. Returns ErrDuplicateKey if the row hash exists.
func (s *RawRowStore) Insert(_ context.Context, r *domain.RawRowRecord) error {
	if r == nil || r.RowHash == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RowHash]; exists {
		return storage.ErrDuplicateKey
	}

	s.nextID++
	rowCopy := *r
	rowCopy.ID = s.nextID
	if rowCopy.CreatedAt == 0 {
		rowCopy.CreatedAt = time.Now().UnixMilli()
	}
	s.data[r.RowHash] = &rowCopy
	r.ID = rowCopy.ID
	return nil
}

// ExistsByHash reports whether a row with the given fingerprint is persisted.
func (s *RawRowStore) ExistsByHash(_ context.Context, rowHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[rowHash]
	return exists, nil
}

// GetByBatch retrieves all rows recorded for a batch, ordered by row number ASC.
func (s *RawRowStore) GetByBatch(_ context.Context, batchID int64) ([]*domain.RawRowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RawRowRecord
	for _, r := range s.data {
		if r.BatchID == batchID {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Provenance.SourceFile != result[j].Provenance.SourceFile {
			return result[i].Provenance.SourceFile < result[j].Provenance.SourceFile
		}
		return result[i].Provenance.RowNumber < result[j].Provenance.RowNumber
	})

	return result, nil
}

// CountBySource returns the number of rows recorded for a source tag.
func (s *RawRowStore) CountBySource(_ context.Context, source domain.Source) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.data {
		if r.Source == source {
			count++
		}
	}
	return count, nil
}

// Len returns the total number of persisted rows. Test helper.
func (s *RawRowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
