package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/storage"
)

// PricePointStore implements storage.PricePointStore using ClickHouse.
type PricePointStore struct {
	conn *Conn
}

// NewPricePointStore creates a new PricePointStore.
func NewPricePointStore(conn *Conn) *PricePointStore {
	return &PricePointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

// Insert adds a single point. Returns ErrDuplicateKey when a point with the
// same (asset, quote, ts, source) already exists; MergeTree does not enforce
// uniqueness, so the natural key is checked before insert.
func (s *PricePointStore) Insert(ctx context.Context, p *domain.PricePoint) error {
	if p == nil || p.Asset == "" || p.Quote == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.Exists(ctx, p.Asset, p.Quote, p.Time, p.Source)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `INSERT INTO price_points (asset, quote, ts, price, source)`

	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	err = batch.Append(p.Asset, p.Quote, p.Time.UTC(), p.Price.String(), string(p.Source))
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// Exists checks if a point with the given natural key exists.
func (s *PricePointStore) Exists(ctx context.Context, asset, quote string, at time.Time, source domain.Source) (bool, error) {
	query := `
		SELECT count(*) FROM price_points
		WHERE asset = ? AND quote = ? AND ts = ? AND source = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, asset, quote, at.UTC(), string(source)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindInWindow retrieves points for (asset, quote) within [start, end]
// (inclusive), ordered by ts ASC.
func (s *PricePointStore) FindInWindow(ctx context.Context, asset, quote string, start, end time.Time) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, quote, ts, price, source
		FROM price_points
		WHERE asset = ? AND quote = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, asset, quote, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query price window: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetByAsset retrieves all points for an asset across quotes, ordered by ts ASC.
func (s *PricePointStore) GetByAsset(ctx context.Context, asset string) ([]*domain.PricePoint, error) {
	query := `
		SELECT asset, quote, ts, price, source
		FROM price_points
		WHERE asset = ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, asset)
	if err != nil {
		return nil, fmt.Errorf("query by asset: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// scanPricePoints scans multiple rows into a slice.
func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		var ts time.Time
		var priceStr, sourceStr string

		err := rows.Scan(&p.Asset, &p.Quote, &ts, &priceStr, &sourceStr)
		if err != nil {
			return nil, fmt.Errorf("scan price point row: %w", err)
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse stored price %q: %w", priceStr, err)
		}

		p.Time = ts.UTC()
		p.Price = price
		p.Source = domain.Source(sourceStr)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price point rows: %w", err)
	}

	return points, nil
}
