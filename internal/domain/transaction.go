package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType tags the kind of normalized transaction.
type TxType string

const (
	TxTypeTransfer TxType = "TRANSFER"
)

// Transaction is the normalized form of one imported row. Timestamp is always
// UTC; inputs without a timezone are taken as UTC during normalization.
// Optional numeric fields are nil when the source carried no value, which is
// distinct from zero.
type Transaction struct {
	TxHash    string    `json:"tx_hash"`
	Timestamp time.Time `json:"datetime_utc"`
	Type      TxType    `json:"type"`

	Platform string `json:"platform,omitempty"`
	Account  string `json:"account,omitempty"`
	Chain    string `json:"chain,omitempty"`

	BaseAsset  *string          `json:"base_asset,omitempty"`
	BaseQty    *decimal.Decimal `json:"base_qty,omitempty"`
	QuoteAsset *string          `json:"quote_asset,omitempty"`
	QuoteQty   *decimal.Decimal `json:"quote_qty,omitempty"`
	FeeAsset   *string          `json:"fee_asset,omitempty"`
	FeeQty     *decimal.Decimal `json:"fee_qty,omitempty"`
	PriceQuote *decimal.Decimal `json:"price_quote,omitempty"`

	Note       string            `json:"note,omitempty"`
	Provenance map[string]string `json:"provenance"`
}
