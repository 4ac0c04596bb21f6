package prices

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBscScanClient_CurrentUSDPrice(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"status":"1","message":"OK","result":{"ethusd":"243.18","ethusd_timestamp":"1693569600"}}`))
	}))
	defer server.Close()

	client := NewBscScanClient(server.URL, "test-key")
	price, err := client.CurrentUSDPrice(context.Background(), "BNB")
	if err != nil {
		t.Fatalf("CurrentUSDPrice failed: %v", err)
	}
	if price.String() != "243.18" {
		t.Errorf("price = %s, want 243.18", price)
	}
	for _, want := range []string{"module=stats", "action=bnbprice", "apikey=test-key"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestBscScanClient_MissingAPIKey(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	client := NewBscScanClient(server.URL, "")
	_, err := client.CurrentUSDPrice(context.Background(), "BNB")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if calls != 0 {
		t.Errorf("unconfigured client made %d network calls", calls)
	}
}

func TestBscScanClient_UnsupportedAsset(t *testing.T) {
	client := NewBscScanClient("http://unused", "key")
	_, err := client.CurrentUSDPrice(context.Background(), "TKN")
	if err == nil {
		t.Fatal("expected error for non-bridge asset")
	}
}

func TestBscScanClient_RetriesOnServerError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"status":"1","message":"OK","result":{"ethusd":"250"}}`))
	}))
	defer server.Close()

	client := NewBscScanClient(server.URL, "key",
		WithMaxRetries(3),
		WithRetryDelay(time.Millisecond),
	)
	price, err := client.CurrentUSDPrice(context.Background(), "BNB")
	if err != nil {
		t.Fatalf("CurrentUSDPrice failed after retries: %v", err)
	}
	if price.String() != "250" {
		t.Errorf("price = %s, want 250", price)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestBscScanClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"0","message":"NOTOK","result":{}}`))
	}))
	defer server.Close()

	client := NewBscScanClient(server.URL, "key")
	_, err := client.CurrentUSDPrice(context.Background(), "BNB")
	if err == nil {
		t.Fatal("expected error for NOTOK response")
	}
}
