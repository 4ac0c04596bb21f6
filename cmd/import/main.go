// Package main is the one-shot CSV importer for files on disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"bsc-ledger-lab/internal/domain"
	"bsc-ledger-lab/internal/ingest"
	"bsc-ledger-lab/internal/storage"
	chstore "bsc-ledger-lab/internal/storage/clickhouse"
	"bsc-ledger-lab/internal/storage/memory"
	"bsc-ledger-lab/internal/storage/migrations"
	pgstore "bsc-ledger-lab/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	source := flag.String("source", "", "Import source: token, wallet, or dexscreener")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run: nothing persists)")

	flag.Parse()

	logger := log.New(os.Stdout, "[import] ", log.LstdFlags|log.Lshortfile)

	paths := flag.Args()
	if *source == "" || len(paths) == 0 {
		logger.Fatal("usage: import --source token|wallet|dexscreener [flags] file.csv [file2.csv ...]")
	}
	if *source != "wallet" && len(paths) > 1 {
		logger.Fatalf("source %q takes exactly one file", *source)
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for a dry run)")
	}

	ctx := context.Background()

	var (
		rawRows storage.RawRowStore
		points  storage.PricePointStore
		batches storage.ImportBatchStore
	)
	if *useMemory {
		rawRows = memory.NewRawRowStore()
		points = memory.NewPricePointStore()
		batches = memory.NewImportBatchStore()
	} else {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Failed to migrate postgres: %v", err)
		}

		chConn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to clickhouse: %v", err)
		}
		defer chConn.Close()
		if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
			logger.Fatalf("Failed to migrate clickhouse: %v", err)
		}

		rawRows = pgstore.NewRawRowStore(pool)
		points = chstore.NewPricePointStore(chConn)
		batches = pgstore.NewImportBatchStore(pool)
	}

	files, closeFiles, err := openFiles(paths)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	defer closeFiles()

	importer := ingest.NewImporter(rawRows, points, batches, nil, logger)

	var (
		batch *domain.ImportBatch
		sum   *ingest.ParseSummary
	)
	switch *source {
	case "token":
		batch, sum, err = importer.ImportTokenCSV(ctx, files[0])
	case "wallet":
		batch, sum, err = importer.ImportWalletCSV(ctx, files)
	case "dexscreener":
		batch, sum, err = importer.ImportPriceCSV(ctx, files[0])
	default:
		logger.Fatalf("unknown source %q", *source)
	}
	if err != nil {
		logger.Fatalf("Import failed: %v", err)
	}

	fmt.Printf("batch %d: %d ok, %d error\n", batch.ID, sum.RowsOK, sum.RowsError)
	for _, warning := range sum.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
	if sum.RowsError > 0 {
		os.Exit(1)
	}
}

func openFiles(paths []string) ([]ingest.NamedFile, func(), error) {
	var files []ingest.NamedFile
	var opened []*os.File

	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", path, err)
		}
		opened = append(opened, f)
		files = append(files, ingest.NamedFile{Name: f.Name(), Reader: f})
	}
	return files, closeAll, nil
}
