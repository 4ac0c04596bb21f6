package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Default configuration values.
const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// BscScanClient fetches the bridge asset's current USD price from a
// BscScan-style stats API.
type BscScanClient struct {
	endpoint    string
	apiKey      string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// BscScanOption configures BscScanClient.
type BscScanOption func(*BscScanClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) BscScanOption {
	return func(c *BscScanClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) BscScanOption {
	return func(c *BscScanClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) BscScanOption {
	return func(c *BscScanClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) BscScanOption {
	return func(c *BscScanClient) {
		c.client = client
	}
}

// NewBscScanClient creates a client. An empty API key yields a client whose
// calls fail with ErrSourceUnavailable without touching the network.
func NewBscScanClient(endpoint, apiKey string, opts ...BscScanOption) *BscScanClient {
	c := &BscScanClient{
		endpoint:    endpoint,
		apiKey:      apiKey,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ LiveSource = (*BscScanClient)(nil)

// bnbPriceResponse is the stats/bnbprice envelope. The API reuses Etherscan
// field names, so ethusd carries the BNB quote.
type bnbPriceResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  struct {
		EthUSD          string `json:"ethusd"`
		EthUSDTimestamp string `json:"ethusd_timestamp"`
	} `json:"result"`
}

// CurrentUSDPrice returns the bridge asset's current USD price. Only the
// bridge asset is served; the API has no per-token price endpoint.
func (c *BscScanClient) CurrentUSDPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	if !strings.EqualFold(asset, BridgeAsset) {
		return decimal.Decimal{}, fmt.Errorf("bscscan serves only %s, not %q", BridgeAsset, asset)
	}
	if c.apiKey == "" {
		return decimal.Decimal{}, ErrSourceUnavailable
	}

	q := url.Values{}
	q.Set("module", "stats")
	q.Set("action", "bnbprice")
	q.Set("apikey", c.apiKey)
	reqURL := c.endpoint + "?" + q.Encode()

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var resp bnbPriceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Decimal{}, fmt.Errorf("unmarshal bnbprice response: %w", err)
	}
	if resp.Status != "1" {
		return decimal.Decimal{}, fmt.Errorf("bscscan error: %s", resp.Message)
	}

	price, err := decimal.NewFromString(resp.Result.EthUSD)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse bnb price %q: %w", resp.Result.EthUSD, err)
	}
	return price, nil
}

// get performs a GET with retries and exponential backoff.
func (c *BscScanClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
