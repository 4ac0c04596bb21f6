package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/storage"
)

type priceKey struct {
	asset  string
	quote  string
	unixMs int64
	source domain.Source
}

// PricePointStore is an in-memory implementation of storage.PricePointStore.
type PricePointStore struct {
	mu   sync.RWMutex
	data map[priceKey]*domain.PricePoint
}

// NewPricePointStore creates a new in-memory price point store.
func NewPricePointStore() *PricePointStore {
	return &PricePointStore{
		data: make(map[priceKey]*domain.PricePoint),
	}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

// Insert adds a new price point. Returns ErrDuplicateKey if the natural key exists.
func (s *PricePointStore) Insert(_ context.Context, p *domain.PricePoint) error {
	if p == nil || p.Asset == "" || p.Quote == "" || p.Time.IsZero() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(p.Asset, p.Quote, p.Time, p.Source)
	if _, exists := s.data[k]; exists {
		return storage.ErrDuplicateKey
	}

	pointCopy := *p
	pointCopy.Time = p.Time.UTC()
	s.data[k] = &pointCopy
	return nil
}

// Exists reports whether a point with the exact natural key is persisted.
func (s *PricePointStore) Exists(_ context.Context, asset, quote string, at time.Time, source domain.Source) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[keyOf(asset, quote, at, source)]
	return exists, nil
}

// FindInWindow retrieves points for (asset, quote) within [start, end] inclusive.
func (s *PricePointStore) FindInWindow(_ context.Context, asset, quote string, start, end time.Time) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.Asset != asset || p.Quote != quote {
			continue
		}
		if p.Time.Before(start) || p.Time.After(end) {
			continue
		}
		pointCopy := *p
		result = append(result, &pointCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})

	return result, nil
}

// GetByAsset retrieves all points for an asset, ordered by time ASC.
func (s *PricePointStore) GetByAsset(_ context.Context, asset string) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, p := range s.data {
		if p.Asset == asset {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})

	return result, nil
}

// Len reports the number of stored points. Test helper.
func (s *PricePointStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func keyOf(asset, quote string, at time.Time, source domain.Source) priceKey {
	return priceKey{
		asset:  asset,
		quote:  quote,
		unixMs: at.UTC().UnixMilli(),
		source: source,
	}
}
