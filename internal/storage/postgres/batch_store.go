package postgres

import (
	"context"
	"fmt"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/storage"
)

// ImportBatchStore implements storage.ImportBatchStore using PostgreSQL.
type ImportBatchStore struct {
	pool *Pool
}

// NewImportBatchStore creates a new ImportBatchStore.
func NewImportBatchStore(pool *Pool) *ImportBatchStore {
	return &ImportBatchStore{pool: pool}
}

var _ storage.ImportBatchStore = (*ImportBatchStore)(nil)

// Create records the start of an import and assigns the batch ID.
func (s *ImportBatchStore) Create(ctx context.Context, b *domain.ImportBatch) error {
	if b == nil || b.Source == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO import_batches (source, file_name, started_at, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := s.pool.QueryRow(ctx, query,
		string(b.Source),
		b.FileName,
		b.StartedAt,
		b.Notes,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("create import batch: %w", err)
	}
	return nil
}

// Complete finalizes a batch with its row counters and warnings.
func (s *ImportBatchStore) Complete(ctx context.Context, b *domain.ImportBatch) error {
	if b == nil || b.ID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE import_batches
		SET completed_at = $2, rows_ok = $3, rows_error = $4, warnings = $5
		WHERE id = $1
	`

	// A nil slice would encode as NULL and trip the NOT NULL constraint.
	warnings := b.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	tag, err := s.pool.Exec(ctx, query,
		b.ID,
		b.CompletedAt,
		b.RowsOK,
		b.RowsError,
		warnings,
	)
	if err != nil {
		return fmt.Errorf("complete import batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single batch.
func (s *ImportBatchStore) GetByID(ctx context.Context, id int64) (*domain.ImportBatch, error) {
	query := `
		SELECT id, source, file_name, started_at, completed_at,
		       rows_ok, rows_error, warnings, notes
		FROM import_batches
		WHERE id = $1
	`

	var b domain.ImportBatch
	var sourceStr string

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&b.ID,
		&sourceStr,
		&b.FileName,
		&b.StartedAt,
		&b.CompletedAt,
		&b.RowsOK,
		&b.RowsError,
		&b.Warnings,
		&b.Notes,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get import batch: %w", err)
	}

	b.Source = domain.Source(sourceStr)
	return &b, nil
}
