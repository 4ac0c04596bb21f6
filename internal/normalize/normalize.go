// Package normalize validates adapter-extracted field values and converts them
// into typed Transaction records.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bsc-ledger-lab/internal/domain"
)

// Row-level validation errors.
var (
	ErrMissingTxHash    = errors.New("tx_hash is required")
	ErrMissingTimestamp = errors.New("timestamp is required")
)

// timeLayouts are tried in order. Layouts without an offset are interpreted
// as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp forms seen across export tools and
// normalizes the result to UTC. Naive timestamps are assumed UTC. All-digit
// values are taken as Unix seconds (BscScan-style timeStamp columns).
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingTimestamp
	}

	if isDigits(s) {
		sec, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse unix timestamp %q: %w", s, err)
		}
		return time.Unix(sec, 0).UTC(), nil
	}

	for _, layout := range timeLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// ParseDecimal parses an arbitrary-precision decimal. An empty value means
// "no value" for optional fields and returns ok=false without an error.
func ParseDecimal(s string) (d decimal.Decimal, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false, nil
	}
	d, err = decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("unparseable decimal %q: %w", s, err)
	}
	return d, true, nil
}

// TransferInput carries the adapter-extracted values for one transfer row.
type TransferInput struct {
	TxHash    string
	Timestamp time.Time
	Symbol    *string
	Amount    decimal.Decimal
	Source    domain.Source
}

// Transaction validates the input and builds the normalized record.
func Transaction(in TransferInput) (*domain.Transaction, error) {
	if strings.TrimSpace(in.TxHash) == "" {
		return nil, ErrMissingTxHash
	}
	if in.Timestamp.IsZero() {
		return nil, ErrMissingTimestamp
	}

	amount := in.Amount
	return &domain.Transaction{
		TxHash:     in.TxHash,
		Timestamp:  in.Timestamp.UTC(),
		Type:       domain.TxTypeTransfer,
		BaseAsset:  in.Symbol,
		BaseQty:    &amount,
		Provenance: map[string]string{"source": sourceTag(in.Source)},
	}, nil
}

func sourceTag(s domain.Source) string {
	switch s {
	case domain.SourceTokenCSV:
		return "token_csv"
	case domain.SourceWalletCSV:
		return "wallet_csv"
	default:
		return strings.ToLower(string(s))
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
