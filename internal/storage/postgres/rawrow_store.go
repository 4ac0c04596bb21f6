package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/storage"
)

// RawRowStore implements storage.RawRowStore using PostgreSQL.
type RawRowStore struct {
	pool *Pool
}

// NewRawRowStore creates a new RawRowStore.
func NewRawRowStore(pool *Pool) *RawRowStore {
	return &RawRowStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawRowStore = (*RawRowStore)(nil)

// Insert adds a new raw row. Returns ErrDuplicateKey if the row hash exists.
func (s *RawRowStore) Insert(ctx context.Context, r *domain.RawRowRecord) error {
	if r == nil || r.RowHash == "" {
		return storage.ErrInvalidInput
	}

	payload, err := json.Marshal(r.RawPayload)
	if err != nil {
		return fmt.Errorf("marshal raw payload: %w", err)
	}
	provenance, err := json.Marshal(r.Provenance)
	if err != nil {
		return fmt.Errorf("marshal provenance: %w", err)
	}

	query := `
		INSERT INTO raw_rows (
			batch_id, source, row_hash, raw_payload, error, provenance
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err = s.pool.QueryRow(ctx, query,
		r.BatchID,
		string(r.Source),
		r.RowHash,
		payload,
		r.Error,
		provenance,
	).Scan(&r.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert raw row: %w", err)
	}
	return nil
}

// ExistsByHash reports whether a row with the given fingerprint is persisted.
func (s *RawRowStore) ExistsByHash(ctx context.Context, rowHash string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM raw_rows WHERE row_hash = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, rowHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("check raw row exists: %w", err)
	}
	return exists, nil
}

// GetByBatch retrieves all rows recorded for a batch, ordered by row number ASC.
func (s *RawRowStore) GetByBatch(ctx context.Context, batchID int64) ([]*domain.RawRowRecord, error) {
	query := `
		SELECT id, batch_id, source, row_hash, raw_payload, error, provenance,
		       (EXTRACT(EPOCH FROM created_at) * 1000)::bigint
		FROM raw_rows
		WHERE batch_id = $1
		ORDER BY provenance->>'source_file' ASC, (provenance->>'row_number')::int ASC
	`

	rows, err := s.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("get raw rows by batch: %w", err)
	}
	defer rows.Close()

	return scanRawRows(rows)
}

// CountBySource returns the number of rows recorded for a source tag.
func (s *RawRowStore) CountBySource(ctx context.Context, source domain.Source) (int, error) {
	query := `SELECT count(*) FROM raw_rows WHERE source = $1`

	var count int
	if err := s.pool.QueryRow(ctx, query, string(source)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count raw rows by source: %w", err)
	}
	return count, nil
}

// scanRawRows scans multiple rows into a slice of RawRowRecord.
func scanRawRows(rows pgx.Rows) ([]*domain.RawRowRecord, error) {
	var result []*domain.RawRowRecord

	for rows.Next() {
		var r domain.RawRowRecord
		var sourceStr string
		var payload, provenance []byte

		err := rows.Scan(
			&r.ID,
			&r.BatchID,
			&sourceStr,
			&r.RowHash,
			&payload,
			&r.Error,
			&provenance,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan raw row: %w", err)
		}

		r.Source = domain.Source(sourceStr)
		if err := json.Unmarshal(payload, &r.RawPayload); err != nil {
			return nil, fmt.Errorf("unmarshal raw payload: %w", err)
		}
		if err := json.Unmarshal(provenance, &r.Provenance); err != nil {
			return nil, fmt.Errorf("unmarshal provenance: %w", err)
		}
		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw rows: %w", err)
	}

	return result, nil
}
