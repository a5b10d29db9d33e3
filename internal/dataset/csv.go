package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"widgetsmith/internal/logging"
)

// LoadCSV reads a CSV file into a Dataset. sampleRows caps how many rows are
// retained as the prompt sample; the full row count is still reported in Shape.
func LoadCSV(path string, sampleRows int) (*Dataset, error) {
	timer := logging.StartTimer(logging.CategoryStore, "dataset load "+filepath.Base(path))
	defer timer.Stop()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(f, sampleRows)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	// Variable name from the file stem, normalized to an identifier
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ds.VariableName = sanitizeVariableName(stem)

	logging.StoreDebug("loaded dataset %s: %s", ds.VariableName, ds.Summary())
	return ds, nil
}

// ReadCSV parses CSV content from a reader. The first record is the header.
func ReadCSV(r io.Reader, sampleRows int) (*Dataset, error) {
	if sampleRows <= 0 {
		sampleRows = 3
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty CSV: no header row")
	}
	if err != nil {
		return nil, err
	}

	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = Column{Name: strings.TrimSpace(name)}
	}

	var (
		rows      int
		sample    []map[string]string
		colValues = make([][]string, len(header))
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rows+2, err)
		}
		rows++

		for i := range header {
			if i < len(record) {
				colValues[i] = append(colValues[i], record[i])
			}
		}
		if len(sample) < sampleRows {
			row := make(map[string]string, len(header))
			for i, c := range columns {
				if i < len(record) {
					row[c.Name] = record[i]
				}
			}
			sample = append(sample, row)
		}
	}

	for i := range columns {
		columns[i].DType = inferDType(colValues[i])
	}

	return &Dataset{
		Columns: columns,
		Shape:   Shape{Rows: rows, Cols: len(columns)},
		Sample:  sample,
	}, nil
}

// sanitizeVariableName turns a file stem into a valid JS-ish identifier.
func sanitizeVariableName(stem string) string {
	var b strings.Builder
	for i, r := range stem {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteRune('_')
			}
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "data"
	}
	return b.String()
}
