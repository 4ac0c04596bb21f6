package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/normalize"
	"bsc-ledger-lab/internal/storage"
)

// ImportPriceCSV ingests a price-feed export. Rows persist price points
// directly, deduplicated by the (asset, quote, time, source) natural key
// rather than a content hash.
func (im *Importer) ImportPriceCSV(ctx context.Context, file NamedFile) (*domain.ImportBatch, *ParseSummary, error) {
	return im.runBatch(ctx, domain.SourceDexscreener, file.Name,
		func(ctx context.Context, batch *domain.ImportBatch) (*ParseSummary, error) {
			return im.importPriceFile(ctx, file)
		})
}

func (im *Importer) importPriceFile(ctx context.Context, file NamedFile) (*ParseSummary, error) {
	rows, err := readRows(file.Reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Name, err)
	}

	sum := &ParseSummary{}
	for _, row := range rows {
		fail := func(reason error) {
			sum.RowsError++
			sum.Warnings = append(sum.Warnings, rowWarning(file.Name, row.Number, reason))
			im.metrics.ObserveRow(string(domain.SourceDexscreener), "error")
		}

		tsText, ok := pick(row.Values, "timestamp", "dt")
		if !ok {
			fail(normalize.ErrMissingTimestamp)
			continue
		}
		ts, err := normalize.ParseTimestamp(tsText)
		if err != nil {
			fail(err)
			continue
		}
		asset, ok := pick(row.Values, "token", "token_symbol")
		if !ok {
			fail(errors.New("token symbol is required"))
			continue
		}

		usdText, _ := pick(row.Values, "price_usd", "price")
		bnbText, _ := pick(row.Values, "price_in_bnb")

		rowErr := false
		if usdText != "" {
			if err := im.persistPricePoint(ctx, asset, domain.QuoteUSD, ts, usdText); err != nil {
				fail(err)
				rowErr = true
			}
		}
		if !rowErr && bnbText != "" {
			if err := im.persistPricePoint(ctx, asset, domain.QuoteBNB, ts, bnbText); err != nil {
				fail(err)
				rowErr = true
			}
		}
		if rowErr {
			continue
		}

		sum.RowsOK++
		im.metrics.ObserveRow(string(domain.SourceDexscreener), "ok")
	}

	return sum, nil
}

// persistPricePoint inserts one observation unless its natural key already
// exists. Re-ingesting an identical point is a no-op.
func (im *Importer) persistPricePoint(ctx context.Context, asset, quote string, at time.Time, priceText string) error {
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return fmt.Errorf("unparseable price %q: %w", priceText, err)
	}

	exists, err := im.prices.Exists(ctx, asset, quote, at, domain.SourceDexscreener)
	if err != nil {
		return fmt.Errorf("check price point: %w", err)
	}
	if exists {
		im.metrics.ObserveDuplicate(string(domain.SourceDexscreener))
		return nil
	}

	point := &domain.PricePoint{
		Time:   at,
		Asset:  asset,
		Quote:  quote,
		Price:  price,
		Source: domain.SourceDexscreener,
	}
	if err := im.prices.Insert(ctx, point); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			im.metrics.ObserveDuplicate(string(domain.SourceDexscreener))
			return nil
		}
		return fmt.Errorf("insert price point: %w", err)
	}
	return nil
}
