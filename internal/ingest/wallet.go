package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bsc-ledger-lab/internal/canonical"
	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/normalize"
	"bsc-ledger-lab/internal/storage"
)

// ImportWalletCSV ingests one or more wallet-export files in a single call.
// The files share one admission gate, so a transfer that appears in two
// export categories is stored once.
func (im *Importer) ImportWalletCSV(ctx context.Context, files []NamedFile) (*domain.ImportBatch, *ParseSummary, error) {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}

	return im.runBatch(ctx, domain.SourceWalletCSV, strings.Join(names, ", "),
		func(ctx context.Context, batch *domain.ImportBatch) (*ParseSummary, error) {
			gate := NewGate(im.rawRows)
			sum := &ParseSummary{}
			for _, file := range files {
				if err := im.importWalletFile(ctx, gate, batch.ID, file, sum); err != nil {
					return nil, err
				}
			}
			return sum, nil
		})
}

func (im *Importer) importWalletFile(ctx context.Context, gate *Gate, batchID int64, file NamedFile, sum *ParseSummary) error {
	rows, err := readRows(file.Reader)
	if err != nil {
		return fmt.Errorf("read %s: %w", file.Name, err)
	}

	for _, row := range rows {
		fail := func(reason error) {
			sum.RowsError++
			sum.Warnings = append(sum.Warnings, rowWarning(file.Name, row.Number, reason))
			im.metrics.ObserveRow(string(domain.SourceWalletCSV), "error")
		}

		txHash, ok := pick(row.Values, "Txhash", "hash", "tx_hash")
		if !ok {
			fail(normalize.ErrMissingTxHash)
			continue
		}
		tsText, ok := pick(row.Values, "DateTime", "timestamp", "timeStamp")
		if !ok {
			fail(normalize.ErrMissingTimestamp)
			continue
		}
		ts, err := normalize.ParseTimestamp(tsText)
		if err != nil {
			fail(err)
			continue
		}

		// Export categories disagree on the amount column; a missing amount
		// is a zero-value transfer (approvals, contract calls).
		valueText, ok := pick(row.Values, "Value", "value", "TokenValue", "token_value")
		if !ok {
			valueText = "0"
		}
		amount, _, err := normalize.ParseDecimal(valueText)
		if err != nil {
			fail(err)
			continue
		}
		from, _ := pick(row.Values, "From")
		to, _ := pick(row.Values, "To")
		symbol := pickOptional(row.Values, "TokenSymbol")

		// Validate first: an invalid row must not claim its fingerprint.
		tx, err := normalize.Transaction(normalize.TransferInput{
			TxHash:    txHash,
			Timestamp: ts,
			Symbol:    symbol,
			Amount:    amount,
			Source:    domain.SourceWalletCSV,
		})
		if err != nil {
			fail(err)
			continue
		}

		fields := canonical.TransferFields(txHash, ts, from, to, valueText, symbol)
		fingerprint := canonical.Fingerprint(fields)

		decision, err := gate.Admit(ctx, fingerprint)
		if err != nil {
			return err
		}
		if decision == DecisionDuplicate {
			im.metrics.ObserveDuplicate(string(domain.SourceWalletCSV))
			continue
		}

		record := &domain.RawRowRecord{
			BatchID:    batchID,
			Source:     domain.SourceWalletCSV,
			RowHash:    fingerprint,
			RawPayload: row.Values,
			Provenance: domain.RowProvenance{
				SourceFile: file.Name,
				RowNumber:  row.Number,
				Normalized: tx,
			},
		}
		if err := im.rawRows.Insert(ctx, record); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				im.metrics.ObserveDuplicate(string(domain.SourceWalletCSV))
				continue
			}
			return fmt.Errorf("insert raw row: %w", err)
		}

		sum.RowsOK++
		im.metrics.ObserveRow(string(domain.SourceWalletCSV), "ok")
	}

	return nil
}
