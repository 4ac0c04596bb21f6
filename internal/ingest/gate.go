package ingest

import (
	"context"
	"fmt"
	"sync"

	"bsc-ledger-lab/internal/storage"
)

// Decision is the outcome of one admission check.
type Decision int

const (
	DecisionAccepted Decision = iota
	DecisionDuplicate
)

// Gate decides whether a fingerprint may enter the store. Duplicate covers
// fingerprints already persisted and fingerprints seen earlier in the same
// import call; the gate only decides, the caller persists on Accepted.
// One Gate is scoped to one import call and shared across its files.
type Gate struct {
	rows storage.RawRowStore

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewGate creates a Gate backed by the given store's fingerprint index.
func NewGate(rows storage.RawRowStore) *Gate {
	return &Gate{
		rows: rows,
		seen: make(map[string]struct{}),
	}
}

// Admit checks a fingerprint. The in-call set is claimed under the lock
// before the store lookup, so two concurrent rows with the same fingerprint
// can never both be accepted within one call. The store's uniqueness
// constraint remains the backstop against concurrent writers elsewhere.
func (g *Gate) Admit(ctx context.Context, fingerprint string) (Decision, error) {
	g.mu.Lock()
	if _, ok := g.seen[fingerprint]; ok {
		g.mu.Unlock()
		return DecisionDuplicate, nil
	}
	g.seen[fingerprint] = struct{}{}
	g.mu.Unlock()

	exists, err := g.rows.ExistsByHash(ctx, fingerprint)
	if err != nil {
		return DecisionDuplicate, fmt.Errorf("check fingerprint: %w", err)
	}
	if exists {
		return DecisionDuplicate, nil
	}
	return DecisionAccepted, nil
}
