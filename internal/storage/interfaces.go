package storage

import (
	"context"
	"time"

	"bsc-ledger-lab/internal/domain"
)

// RawRowStore provides access to imported raw row records. The row hash is
// unique across the whole store; Insert is the authoritative dedup backstop
// under concurrent imports.
type RawRowStore interface {
	// Insert adds a new raw row. Returns ErrDuplicateKey if the row hash exists.
	Insert(ctx context.Context, r *domain.RawRowRecord) error

	// ExistsByHash reports whether a row with the given fingerprint is persisted.
	ExistsByHash(ctx context.Context, rowHash string) (bool, error)

	// GetByBatch retrieves all rows recorded for a batch, ordered by row number ASC.
	GetByBatch(ctx context.Context, batchID int64) ([]*domain.RawRowRecord, error)

	// CountBySource returns the number of rows recorded for a source tag.
	CountBySource(ctx context.Context, source domain.Source) (int, error)
}

// PricePointStore provides access to historical price points, keyed by the
// natural tuple (asset, quote, time, source).
type PricePointStore interface {
	// Insert adds a new price point. Returns ErrDuplicateKey if the natural key exists.
	Insert(ctx context.Context, p *domain.PricePoint) error

	// Exists reports whether a point with the exact natural key is persisted.
	Exists(ctx context.Context, asset, quote string, at time.Time, source domain.Source) (bool, error)

	// FindInWindow retrieves points for (asset, quote) with time within
	// [start, end] inclusive, ordered by time ASC.
	FindInWindow(ctx context.Context, asset, quote string, start, end time.Time) ([]*domain.PricePoint, error)

	// GetByAsset retrieves all points for an asset, ordered by time ASC.
	GetByAsset(ctx context.Context, asset string) ([]*domain.PricePoint, error)
}

// ImportBatchStore provides access to import batch bookkeeping.
type ImportBatchStore interface {
	// Create persists a new batch and assigns its ID.
	Create(ctx context.Context, b *domain.ImportBatch) error

	// Complete records the final counts and completion time for a batch.
	// Returns ErrNotFound if the batch does not exist.
	Complete(ctx context.Context, b *domain.ImportBatch) error

	// GetByID retrieves a batch. Returns ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id int64) (*domain.ImportBatch, error)
}
