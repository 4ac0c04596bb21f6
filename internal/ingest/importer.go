// Package ingest parses CSV exports into raw row records and price points.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/observability"
	"bsc-ledger-lab/internal/storage"
)

// NamedFile is one uploaded or on-disk CSV file.
type NamedFile struct {
	Name   string
	Reader io.Reader
}

// ParseSummary reports the outcome of one import call. Duplicates count in
// neither RowsOK nor RowsError.
type ParseSummary struct {
	RowsOK    int      `json:"rows_ok"`
	RowsError int      `json:"rows_error"`
	Warnings  []string `json:"warnings"`
}

// Importer runs CSV imports against the injected stores.
type Importer struct {
	rawRows storage.RawRowStore
	prices  storage.PricePointStore
	batches storage.ImportBatchStore
	metrics *observability.Metrics
	logger  *log.Logger
}

// NewImporter creates an Importer. metrics may be nil; a nil logger falls
// back to a default one.
func NewImporter(
	rawRows storage.RawRowStore,
	prices storage.PricePointStore,
	batches storage.ImportBatchStore,
	metrics *observability.Metrics,
	logger *log.Logger,
) *Importer {
	if logger == nil {
		logger = log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)
	}
	return &Importer{
		rawRows: rawRows,
		prices:  prices,
		batches: batches,
		metrics: metrics,
		logger:  logger,
	}
}

// runBatch frames one import call: the batch row is created before parsing
// starts and completed exactly once with the counters afterwards.
func (im *Importer) runBatch(
	ctx context.Context,
	source domain.Source,
	fileName string,
	parse func(ctx context.Context, batch *domain.ImportBatch) (*ParseSummary, error),
) (*domain.ImportBatch, *ParseSummary, error) {
	batch := &domain.ImportBatch{
		Source:    source,
		FileName:  fileName,
		StartedAt: time.Now().UTC(),
	}
	if err := im.batches.Create(ctx, batch); err != nil {
		return nil, nil, fmt.Errorf("create import batch: %w", err)
	}

	summary, err := parse(ctx, batch)
	if err != nil {
		return nil, nil, err
	}

	completed := time.Now().UTC()
	batch.CompletedAt = &completed
	batch.RowsOK = summary.RowsOK
	batch.RowsError = summary.RowsError
	batch.Warnings = summary.Warnings
	if err := im.batches.Complete(ctx, batch); err != nil {
		return nil, nil, fmt.Errorf("complete import batch: %w", err)
	}

	im.metrics.ObserveBatch(string(source))
	im.metrics.ObserveImportDuration(string(source), completed.Sub(batch.StartedAt).Seconds())
	im.logger.Printf("batch %d (%s): %d ok, %d error, %d warnings",
		batch.ID, source, summary.RowsOK, summary.RowsError, len(summary.Warnings))

	return batch, summary, nil
}

// rowWarning formats a per-row failure for the batch warning list.
func rowWarning(fileName string, rowNumber int, err error) string {
	return fmt.Sprintf("%s row %d: %v", fileName, rowNumber, err)
}
