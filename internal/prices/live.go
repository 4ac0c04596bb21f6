package prices

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrSourceUnavailable means the live source is unconfigured or has no data.
// The resolver propagates it unchanged and never retries.
var ErrSourceUnavailable = errors.New("live price source unavailable")

// LiveSource supplies the current USD price of an asset. Implementations are
// consulted only when no historical point covers the request.
type LiveSource interface {
	CurrentUSDPrice(ctx context.Context, asset string) (decimal.Decimal, error)
}
