// Package main runs the ingestion and price-resolution HTTP service:
// CSV uploads land raw rows and price points, GET /api/price answers
// USD price queries with the bridge-asset fallback.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/ingest"
	"bsc-ledger-lab/internal/observability"
	"bsc-ledger-lab/internal/prices"
	"bsc-ledger-lab/internal/storage"
	chstore "bsc-ledger-lab/internal/storage/clickhouse"
	"bsc-ledger-lab/internal/storage/memory"
	"bsc-ledger-lab/internal/storage/migrations"
	pgstore "bsc-ledger-lab/internal/storage/postgres"
)

// Server holds the wired components and request-serving state.
type Server struct {
	stores    *allStores
	importer  *ingest.Importer
	resolver  *prices.Resolver
	stream    *prices.TickerStream
	useMemory bool
	logger    *log.Logger

	startedAt time.Time
	imports   atomic.Int64
	lookups   atomic.Int64
}

// allStores holds all storage implementations.
type allStores struct {
	rawRows storage.RawRowStore
	prices  storage.PricePointStore
	batches storage.ImportBatchStore
}

func main() {
	// Load .env if present; system env vars win.
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("HTTP_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	bscScanEndpoint := flag.String("bscscan-endpoint", envOr("BSCSCAN_ENDPOINT", "https://api.bscscan.com/api"), "BscScan API endpoint")
	bscScanAPIKey := flag.String("bscscan-api-key", os.Getenv("BSCSCAN_API_KEY"), "BscScan API key (empty disables the live source)")
	tickerEndpoint := flag.String("ticker-ws", os.Getenv("TICKER_WS_ENDPOINT"), "WebSocket BNB/USD trade stream endpoint (overrides BscScan)")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("")

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, metrics)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	var live prices.LiveSource
	var stream *prices.TickerStream
	if *tickerEndpoint != "" {
		stream, err = prices.NewTickerStream(ctx, *tickerEndpoint, nil, stores.prices, logger)
		if err != nil {
			logger.Fatalf("Failed to connect ticker stream: %v", err)
		}
		defer stream.Close()
		live = stream
		logger.Printf("Live source: ticker stream %s", *tickerEndpoint)
	} else {
		live = prices.NewBscScanClient(*bscScanEndpoint, *bscScanAPIKey)
		if *bscScanAPIKey == "" {
			logger.Println("BSCSCAN_API_KEY not set; live price fallback disabled")
		}
	}

	server := &Server{
		stores:    stores,
		importer:  ingest.NewImporter(stores.rawRows, stores.prices, stores.batches, metrics, logger),
		resolver:  prices.NewResolver(stores.prices, live, metrics, logger),
		stream:    stream,
		useMemory: *useMemory,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/import/csv", server.handleImportCSV)
	mux.HandleFunc("/api/price", server.handlePrice)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", server.handleStatus)
	mux.Handle("/metrics", observability.Handler())

	httpServer := &http.Server{Addr: *addr, Handler: mux}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
	}()

	logger.Printf("Starting HTTP server on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// createStores creates the memory or postgres+clickhouse backends and applies
// migrations for the persistent ones.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, metrics *observability.Metrics) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			rawRows: memory.NewRawRowStore(),
			prices:  memory.NewPricePointStore(),
			batches: memory.NewImportBatchStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	pool.SetQueryObserver(metrics.ObserveDBQuery)
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	stores := &allStores{
		rawRows: pgstore.NewRawRowStore(pool),
		prices:  chstore.NewPricePointStore(chConn),
		batches: pgstore.NewImportBatchStore(pool),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// importResponse is the JSON reply of POST /api/import/csv.
type importResponse struct {
	BatchID   int64    `json:"batch_id"`
	RowsOK    int      `json:"rows_ok"`
	RowsError int      `json:"rows_error"`
	Warnings  []string `json:"warnings"`
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		http.Error(w, "source query parameter is required", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, fmt.Sprintf("parse multipart form: %v", err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["files"]
	}
	if len(headers) == 0 {
		http.Error(w, "no files uploaded", http.StatusBadRequest)
		return
	}

	files, closeFiles, err := openUploads(headers)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer closeFiles()

	var (
		batch *domain.ImportBatch
		sum   *ingest.ParseSummary
	)
	switch source {
	case "token":
		batch, sum, err = s.importer.ImportTokenCSV(r.Context(), files[0])
	case "wallet":
		batch, sum, err = s.importer.ImportWalletCSV(r.Context(), files)
	case "dexscreener":
		batch, sum, err = s.importer.ImportPriceCSV(r.Context(), files[0])
	default:
		http.Error(w, fmt.Sprintf("unknown source %q", source), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Printf("import %s failed: %v", source, err)
		http.Error(w, "import failed", http.StatusInternalServerError)
		return
	}

	s.imports.Add(1)
	warnings := sum.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, importResponse{
		BatchID:   batch.ID,
		RowsOK:    sum.RowsOK,
		RowsError: sum.RowsError,
		Warnings:  warnings,
	})
}

// openUploads opens every uploaded file. The returned closer releases them all.
func openUploads(headers []*multipart.FileHeader) ([]ingest.NamedFile, func(), error) {
	var files []ingest.NamedFile
	var opened []multipart.File

	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open upload %s: %w", h.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, ingest.NamedFile{Name: h.Filename, Reader: f})
	}
	return files, closeAll, nil
}

// priceResponse is the JSON reply of GET /api/price.
type priceResponse struct {
	Asset string `json:"asset"`
	At    string `json:"at"`
	Price string `json:"price_usd"`
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	asset := r.URL.Query().Get("asset")
	if asset == "" {
		http.Error(w, "asset query parameter is required", http.StatusBadRequest)
		return
	}

	at := time.Now().UTC()
	if atParam := r.URL.Query().Get("at"); atParam != "" {
		parsed, err := time.Parse(time.RFC3339, atParam)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid at timestamp %q, want RFC3339", atParam), http.StatusBadRequest)
			return
		}
		at = parsed.UTC()
	}

	s.lookups.Add(1)
	price, err := s.resolver.USDPrice(r.Context(), asset, at)
	if err != nil {
		var nf *prices.NotFoundError
		switch {
		case errors.As(err, &nf):
			http.Error(w, nf.Error(), http.StatusNotFound)
		case errors.Is(err, prices.ErrSourceUnavailable):
			http.Error(w, "live price source unavailable", http.StatusServiceUnavailable)
		default:
			s.logger.Printf("price lookup failed: %v", err)
			http.Error(w, "price lookup failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		Asset: asset,
		At:    at.Format(time.RFC3339),
		Price: price.String(),
	})
}

// statusResponse is the JSON reply of GET /status.
type statusResponse struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	UseMemory     bool   `json:"use_memory"`
	Imports       int64  `json:"imports"`
	PriceLookups  int64  `json:"price_lookups"`
	LastTickAt    string `json:"last_tick_at,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		UseMemory:     s.useMemory,
		Imports:       s.imports.Load(),
		PriceLookups:  s.lookups.Load(),
	}
	if s.stream != nil {
		if _, at, ok := s.stream.LastTick(); ok {
			resp.LastTickAt = at.Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json response: %v", err)
	}
}
