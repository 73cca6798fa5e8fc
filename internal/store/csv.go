package store

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/rish742/telematics-Dashboard/internal/telematics"
)

// ReadRowsCSV loads raw rows from a CSV fixture file. Cell values stay
// strings; the normalization pipeline coerces them like any other fetched
// row. Used to seed the memory backend for local development.
func ReadRowsCSV(path string) ([]telematics.Row, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV records: %w", err)
	}

	rows := make([]telematics.Row, 0, len(records))
	for _, record := range records {
		if len(record) < len(header) {
			continue // Skip malformed records
		}

		row := make(telematics.Row, len(header))
		for i, col := range header {
			row[col] = record[i]
		}
		rows = append(rows, row)
	}

	return rows, nil
}
