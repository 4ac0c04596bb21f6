package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/storage"
)

// TickerStreamConfig configures stream behavior.
type TickerStreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
}

// DefaultTickerStreamConfig returns default stream configuration.
func DefaultTickerStreamConfig() TickerStreamConfig {
	return TickerStreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// tickerMessage is one trade tick in the exchange's stream format.
type tickerMessage struct {
	Price  string `json:"p"`
	TimeMs int64  `json:"T"`
}

// TickerStream subscribes to a BNB/USD trade stream over WebSocket and
// caches the latest tick. It implements LiveSource from the cache, so a
// resolver fallback never blocks on the network. When a point store is
// given, every tick is also recorded as a LIVE price point.
type TickerStream struct {
	endpoint string
	config   TickerStreamConfig
	points   storage.PricePointStore
	logger   *log.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	mu       sync.RWMutex
	last     decimal.Decimal
	lastAt   time.Time
	haveTick bool

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Compile-time interface check.
var _ LiveSource = (*TickerStream)(nil)

// NewTickerStream connects to the endpoint and starts the read loop.
// points and logger may be nil.
func NewTickerStream(ctx context.Context, endpoint string, config *TickerStreamConfig, points storage.PricePointStore, logger *log.Logger) (*TickerStream, error) {
	cfg := DefaultTickerStreamConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[ticker] ", log.LstdFlags|log.Lshortfile)
	}

	s := &TickerStream{
		endpoint: endpoint,
		config:   cfg,
		points:   points,
		logger:   logger,
		done:     make(chan struct{}),
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	s.setConn(conn)

	s.wg.Add(1)
	go s.readLoop()

	return s, nil
}

func (s *TickerStream) setConn(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

func (s *TickerStream) closeConn() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

// CurrentUSDPrice returns the cached tick. ErrSourceUnavailable until the
// first tick arrives or after Close.
func (s *TickerStream) CurrentUSDPrice(_ context.Context, asset string) (decimal.Decimal, error) {
	if !strings.EqualFold(asset, BridgeAsset) {
		return decimal.Decimal{}, fmt.Errorf("ticker stream serves only %s, not %q", BridgeAsset, asset)
	}
	if s.closed.Load() {
		return decimal.Decimal{}, ErrSourceUnavailable
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.haveTick {
		return decimal.Decimal{}, ErrSourceUnavailable
	}
	return s.last, nil
}

// LastTick returns the cached tick and its exchange timestamp.
func (s *TickerStream) LastTick() (decimal.Decimal, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastAt, s.haveTick
}

// Close stops the read loop and closes the connection.
func (s *TickerStream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)
	// Unblock a pending ReadMessage.
	s.closeConn()
	s.wg.Wait()
	return nil
}

func (s *TickerStream) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial ticker stream: %w", err)
	}
	return conn, nil
}

// readLoop consumes ticks and reconnects with exponential backoff until Close.
func (s *TickerStream) readLoop() {
	defer s.wg.Done()
	defer s.closeConn()

	delay := s.config.ReconnectDelay
	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(delay):
			}
			delay = delay * 2
			if delay > s.config.MaxReconnectDelay {
				delay = s.config.MaxReconnectDelay
			}

			next, err := s.dial(context.Background())
			if err != nil {
				s.logger.Printf("reconnect failed: %v", err)
				continue
			}
			s.setConn(next)
			delay = s.config.ReconnectDelay
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Printf("read tick: %v", err)
			s.closeConn()
			continue
		}

		s.handleTick(data)
	}
}

func (s *TickerStream) handleTick(data []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Printf("unmarshal tick: %v", err)
		return
	}
	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		s.logger.Printf("parse tick price %q: %v", msg.Price, err)
		return
	}
	at := time.UnixMilli(msg.TimeMs).UTC()

	s.mu.Lock()
	s.last = price
	s.lastAt = at
	s.haveTick = true
	s.mu.Unlock()

	if s.points != nil {
		point := &domain.PricePoint{
			Time:   at,
			Asset:  BridgeAsset,
			Quote:  domain.QuoteUSD,
			Price:  price,
			Source: domain.SourceLive,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.points.Insert(ctx, point); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			s.logger.Printf("record live point: %v", err)
		}
	}
}
