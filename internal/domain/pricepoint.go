package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one historical quote: Asset priced in Quote at Time.
// The tuple (Asset, Quote, Time, Source) is the natural key; re-ingesting an
// identical point is a no-op.
type PricePoint struct {
	Time   time.Time
	Asset  string
	Quote  string
	Price  decimal.Decimal
	Source Source
}
