package domain

import "time"

// ImportBatch aggregates the outcome of one ingestion call. It is created
// before parsing starts and completed once with the final counts.
type ImportBatch struct {
	ID          int64
	Source      Source
	FileName    string
	StartedAt   time.Time
	CompletedAt *time.Time
	RowsOK      int
	RowsError   int
	Warnings    []string
	Notes       string
}
