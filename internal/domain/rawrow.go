package domain

// RowProvenance records where a raw row came from and what it normalized to.
type RowProvenance struct {
	SourceFile string       `json:"source_file"`
	RowNumber  int          `json:"row_number"` // 1-based position within the file
	Normalized *Transaction `json:"normalized,omitempty"`
}

// RawRowRecord is the persisted identity of one accepted CSV row.
// RowHash is the canonical-form fingerprint and is unique across the store;
// a second row with the same hash is skipped, not an error.
type RawRowRecord struct {
	ID         int64
	BatchID    int64
	Source     Source
	RowHash    string
	RawPayload map[string]string
	Error      *string
	Provenance RowProvenance
	CreatedAt  int64 // Unix timestamp in milliseconds
}
