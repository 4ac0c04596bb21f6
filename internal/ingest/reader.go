package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one data row of a CSV file, keyed by header column name.
// Number is 1-based and counts data rows, not the header line.
type Row struct {
	Number int
	Values map[string]string
}

// readRows reads a whole CSV file into header-keyed rows. Ragged rows are
// tolerated; extra cells are dropped and missing cells are absent keys.
func readRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	if len(header) > 0 {
		// Excel and some export tools prepend a UTF-8 BOM.
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	number := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		number++
		values := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(record) {
				values[name] = record[i]
			}
		}
		rows = append(rows, Row{Number: number, Values: values})
	}

	return rows, nil
}
