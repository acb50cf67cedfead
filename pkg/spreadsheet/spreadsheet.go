// Package spreadsheet parses uploaded tabular files into ordered rows of
// named fields. Header names are normalized so documented aliases such as
// "Control ID", "control_id", and "Control  ID" all resolve to the same
// field key.
package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one data row. Number is the 1-based position within the data
// rows (excluding the header), used in validation messages.
type Row struct {
	Number int
	Fields map[string]string
}

// Get returns the value of a field by normalized key.
func (r Row) Get(key string) string {
	return r.Fields[NormalizeHeader(key)]
}

// NormalizeHeader lowercases a header name and strips everything that is
// not a letter or digit.
func NormalizeHeader(name string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(name) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ParseCSV reads a CSV file: first record is the header, the rest are
// data rows. Empty lines are skipped. Records shorter than the header
// leave the missing fields empty.
func ParseCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = NormalizeHeader(h)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+1, err)
		}

		fields := make(map[string]string, len(keys))
		empty := true
		for i, key := range keys {
			if key == "" {
				continue
			}
			var value string
			if i < len(record) {
				value = record[i]
			}
			if strings.TrimSpace(value) != "" {
				empty = false
			}
			fields[key] = value
		}
		if empty {
			continue
		}

		rows = append(rows, Row{Number: len(rows) + 1, Fields: fields})
	}

	return rows, nil
}
