package ingest

import (
	"context"
	"errors"
	"fmt"

	"bsc-ledger-lab/internal/canonical"
	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/normalize"
	"bsc-ledger-lab/internal/storage"
)

// ImportTokenCSV ingests one token-transfer export. Per-row failures become
// batch warnings; duplicates are skipped and counted in neither bucket.
func (im *Importer) ImportTokenCSV(ctx context.Context, file NamedFile) (*domain.ImportBatch, *ParseSummary, error) {
	return im.runBatch(ctx, domain.SourceTokenCSV, file.Name,
		func(ctx context.Context, batch *domain.ImportBatch) (*ParseSummary, error) {
			gate := NewGate(im.rawRows)
			sum := &ParseSummary{}
			if err := im.importTokenFile(ctx, gate, batch.ID, file, sum); err != nil {
				return nil, err
			}
			return sum, nil
		})
}

func (im *Importer) importTokenFile(ctx context.Context, gate *Gate, batchID int64, file NamedFile, sum *ParseSummary) error {
	rows, err := readRows(file.Reader)
	if err != nil {
		return fmt.Errorf("read %s: %w", file.Name, err)
	}

	for _, row := range rows {
		fail := func(reason error) {
			sum.RowsError++
			sum.Warnings = append(sum.Warnings, rowWarning(file.Name, row.Number, reason))
			im.metrics.ObserveRow(string(domain.SourceTokenCSV), "error")
		}

		txHash, ok := pick(row.Values, "tx_hash")
		if !ok {
			fail(normalize.ErrMissingTxHash)
			continue
		}
		tsText, ok := pick(row.Values, "timestamp")
		if !ok {
			fail(normalize.ErrMissingTimestamp)
			continue
		}
		ts, err := normalize.ParseTimestamp(tsText)
		if err != nil {
			fail(err)
			continue
		}
		valueText, ok := pick(row.Values, "value")
		if !ok {
			fail(errors.New("value is required"))
			continue
		}
		amount, _, err := normalize.ParseDecimal(valueText)
		if err != nil {
			fail(err)
			continue
		}
		from, ok := pick(row.Values, "from")
		if !ok {
			fail(errors.New("from is required"))
			continue
		}
		to, ok := pick(row.Values, "to")
		if !ok {
			fail(errors.New("to is required"))
			continue
		}
		symbol := pickOptional(row.Values, "token_symbol")
		contract := pickOptional(row.Values, "token_contract")

		// Validate first: an invalid row must not claim its fingerprint.
		tx, err := normalize.Transaction(normalize.TransferInput{
			TxHash:    txHash,
			Timestamp: ts,
			Symbol:    symbol,
			Amount:    amount,
			Source:    domain.SourceTokenCSV,
		})
		if err != nil {
			fail(err)
			continue
		}

		fields := canonical.TransferFields(txHash, ts, from, to, valueText, symbol).
			WithContract(contract)
		fingerprint := canonical.Fingerprint(fields)

		decision, err := gate.Admit(ctx, fingerprint)
		if err != nil {
			return err
		}
		if decision == DecisionDuplicate {
			im.metrics.ObserveDuplicate(string(domain.SourceTokenCSV))
			continue
		}

		record := &domain.RawRowRecord{
			BatchID:    batchID,
			Source:     domain.SourceTokenCSV,
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
				// Another writer persisted the same fingerprint between the
				// gate check and this insert.
				im.metrics.ObserveDuplicate(string(domain.SourceTokenCSV))
				continue
			}
			return fmt.Errorf("insert raw row: %w", err)
		}

		sum.RowsOK++
		im.metrics.ObserveRow(string(domain.SourceTokenCSV), "ok")
	}

	return nil
}
