// Package prices resolves asset prices from stored points with a live-source
// fallback over the bridge asset.
package prices

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/observability"
	"bsc-ledger-lab/internal/storage"
)

const (
	// BridgeAsset is the asset thinly-traded symbols borrow pricing through.
	BridgeAsset = "BNB"

	// Window is the symmetric search radius around the requested instant.
	Window = 24 * time.Hour
)

// NotFoundError reports that no stored or derivable price covers the request.
type NotFoundError struct {
	Asset string
	At    time.Time
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no price for %s at %s", e.Asset, e.At.UTC().Format(time.RFC3339))
}

// Resolver answers USD price queries. It is read-only against the store; the
// only side effect is the live source call on the fallback paths.
type Resolver struct {
	points  storage.PricePointStore
	live    LiveSource
	metrics *observability.Metrics
	logger  *log.Logger
}

// NewResolver creates a Resolver. live may be nil, in which case the fallback
// paths report ErrSourceUnavailable. metrics may be nil.
func NewResolver(points storage.PricePointStore, live LiveSource, metrics *observability.Metrics, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(os.Stdout, "[prices] ", log.LstdFlags|log.Lshortfile)
	}
	return &Resolver{
		points:  points,
		live:    live,
		metrics: metrics,
		logger:  logger,
	}
}

// USDPrice resolves the USD price of asset at the given instant:
// nearest stored USD point within ±Window, else the live source directly for
// the bridge asset, else nearest bridge-quoted point times the live bridge
// rate. Returns *NotFoundError when every path comes up empty.
func (r *Resolver) USDPrice(ctx context.Context, asset string, at time.Time) (decimal.Decimal, error) {
	start, end := at.Add(-Window), at.Add(Window)

	points, err := r.points.FindInWindow(ctx, asset, domain.QuoteUSD, start, end)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("find usd points: %w", err)
	}
	if len(points) > 0 {
		chosen := nearest(points, at)
		r.metrics.ObserveLookup("direct")
		r.logger.Printf("price-source=csv asset=%s ts=%s", asset, chosen.Time.Format(time.RFC3339))
		return chosen.Price, nil
	}

	if strings.EqualFold(asset, BridgeAsset) {
		price, err := r.liveUSDPrice(ctx, BridgeAsset)
		if err != nil {
			return decimal.Decimal{}, err
		}
		r.metrics.ObserveLookup("live")
		r.logger.Printf("price-source=live asset=%s", BridgeAsset)
		return price, nil
	}

	points, err = r.points.FindInWindow(ctx, asset, domain.QuoteBNB, start, end)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("find bridge points: %w", err)
	}
	if len(points) > 0 {
		chosen := nearest(points, at)
		bridgeUSD, err := r.liveUSDPrice(ctx, BridgeAsset)
		if err != nil {
			return decimal.Decimal{}, err
		}
		r.metrics.ObserveLookup("bridge")
		r.logger.Printf("price-source=csv-bridge asset=%s ts=%s", asset, chosen.Time.Format(time.RFC3339))
		return chosen.Price.Mul(bridgeUSD), nil
	}

	r.metrics.ObserveLookup("not_found")
	return decimal.Decimal{}, &NotFoundError{Asset: asset, At: at}
}

// liveUSDPrice wraps the live source call with latency observation. The
// source's errors pass through unchanged; the resolver never retries.
func (r *Resolver) liveUSDPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	if r.live == nil {
		return decimal.Decimal{}, ErrSourceUnavailable
	}
	begin := time.Now()
	price, err := r.live.CurrentUSDPrice(ctx, asset)
	r.metrics.ObserveLiveLatency(time.Since(begin).Seconds())
	return price, err
}

// nearest picks the point minimizing |t - at|. Points arrive ordered by time
// ASC and the comparison is strict, so an equidistant pair resolves to the
// earlier timestamp.
func nearest(points []*domain.PricePoint, at time.Time) *domain.PricePoint {
	best := points[0]
	bestDist := absDuration(best.Time.Sub(at))
	for _, p := range points[1:] {
		if d := absDuration(p.Time.Sub(at)); d < bestDist {
			best = p
			bestDist = d
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
