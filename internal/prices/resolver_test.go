package prices

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/storage/memory"
)

type fakeLive struct {
	price decimal.Decimal
	err   error
	calls int
}

func (f *fakeLive) CurrentUSDPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	return f.price, nil
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func seedPoint(t *testing.T, store *memory.PricePointStore, asset, quote, price string, at time.Time) {
	t.Helper()
	err := store.Insert(context.Background(), &domain.PricePoint{
		Time:   at,
		Asset:  asset,
		Quote:  quote,
		Price:  dec(t, price),
		Source: domain.SourceDexscreener,
	})
	if err != nil {
		t.Fatalf("seed point: %v", err)
	}
}

func TestResolver_DirectNearest(t *testing.T) {
	store := memory.NewPricePointStore()
	day := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	seedPoint(t, store, "TKN", domain.QuoteUSD, "1.0", day.Add(10*time.Hour))
	seedPoint(t, store, "TKN", domain.QuoteUSD, "1.5", day.Add(14*time.Hour))

	live := &fakeLive{}
	r := NewResolver(store, live, nil, nil)

	price, err := r.USDPrice(context.Background(), "TKN", day.Add(11*time.Hour))
	if err != nil {
		t.Fatalf("USDPrice failed: %v", err)
	}
	if !price.Equal(dec(t, "1.0")) {
		t.Errorf("price = %s, want 1.0", price)
	}

	price, err = r.USDPrice(context.Background(), "TKN", day.Add(13*time.Hour+30*time.Minute))
	if err != nil {
		t.Fatalf("USDPrice failed: %v", err)
	}
	if !price.Equal(dec(t, "1.5")) {
		t.Errorf("price = %s, want 1.5", price)
	}

	if live.calls != 0 {
		t.Errorf("live source consulted %d times on the direct path", live.calls)
	}
}

func TestResolver_TieBreaksEarlier(t *testing.T) {
	store := memory.NewPricePointStore()
	day := time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC)
	seedPoint(t, store, "TKN", domain.QuoteUSD, "1.0", day.Add(10*time.Hour))
	seedPoint(t, store, "TKN", domain.QuoteUSD, "2.0", day.Add(14*time.Hour))

	r := NewResolver(store, nil, nil, nil)

	// 12:00 is equidistant from both points.
	price, err := r.USDPrice(context.Background(), "TKN", day.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("USDPrice failed: %v", err)
	}
	if !price.Equal(dec(t, "1.0")) {
		t.Errorf("price = %s, want the earlier point's 1.0", price)
	}
}

func TestResolver_WindowExcludesFarPoints(t *testing.T) {
	store := memory.NewPricePointStore()
	at := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)
	seedPoint(t, store, "TKN", domain.QuoteUSD, "9.9", at.Add(-3*24*time.Hour))

	r := NewResolver(store, nil, nil, nil)

	_, err := r.USDPrice(context.Background(), "TKN", at)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestResolver_BridgeAssetGoesLive(t *testing.T) {
	store := memory.NewPricePointStore()
	live := &fakeLive{price: dec(t, "200")}
	r := NewResolver(store, live, nil, nil)

	at := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)
	for _, asset := range []string{"BNB", "bnb"} {
		price, err := r.USDPrice(context.Background(), asset, at)
		if err != nil {
			t.Fatalf("USDPrice(%s) failed: %v", asset, err)
		}
		if !price.Equal(dec(t, "200")) {
			t.Errorf("USDPrice(%s) = %s, want 200", asset, price)
		}
	}
}

func TestResolver_BridgeCrossRate(t *testing.T) {
	store := memory.NewPricePointStore()
	at := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)
	seedPoint(t, store, "ALT", domain.QuoteBNB, "0.002", at.Add(-2*time.Hour))

	live := &fakeLive{price: dec(t, "200")}
	r := NewResolver(store, live, nil, nil)

	price, err := r.USDPrice(context.Background(), "ALT", at)
	if err != nil {
		t.Fatalf("USDPrice failed: %v", err)
	}
	if !price.Equal(dec(t, "0.4")) {
		t.Errorf("price = %s, want 0.4", price)
	}
	if live.calls != 1 {
		t.Errorf("live source calls = %d, want 1", live.calls)
	}
}

func TestResolver_NotFound(t *testing.T) {
	store := memory.NewPricePointStore()
	r := NewResolver(store, &fakeLive{price: dec(t, "200")}, nil, nil)

	at := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)
	_, err := r.USDPrice(context.Background(), "MISSING", at)

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Asset != "MISSING" || !nf.At.Equal(at) {
		t.Errorf("NotFoundError = %+v, want asset MISSING at %s", nf, at)
	}
}

func TestResolver_SourceUnavailablePropagates(t *testing.T) {
	store := memory.NewPricePointStore()
	at := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)
	seedPoint(t, store, "ALT", domain.QuoteBNB, "0.002", at)

	live := &fakeLive{err: ErrSourceUnavailable}
	r := NewResolver(store, live, nil, nil)

	_, err := r.USDPrice(context.Background(), "ALT", at)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable unchanged, got %v", err)
	}
	if live.calls != 1 {
		t.Errorf("live source calls = %d, want exactly 1 (no retries)", live.calls)
	}
}

func TestResolver_NilLiveSource(t *testing.T) {
	store := memory.NewPricePointStore()
	r := NewResolver(store, nil, nil, nil)

	at := time.Date(2023, 9, 1, 12, 0, 0, 0, time.UTC)
	_, err := r.USDPrice(context.Background(), "BNB", at)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}
}
