// Package patients loads the patient CSV into an immutable lookup table
// and serves it through a store that swaps snapshots atomically.
package patients

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/giygas/drugcheck-api/logging"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrMissingIDColumn means the header has no column named like the id column
	ErrMissingIDColumn = errors.New("id column not found in header")
	// ErrEmptyFile means the CSV has no header row
	ErrEmptyFile = errors.New("patient file is empty")
)

// Table is an immutable snapshot of the patient file
type Table struct {
	records    map[string]Record
	columns    []string
	idColumn   string
	source     string
	loadedAt   time.Time
	duplicates int
	skipped    int
}

// Lookup returns the row whose id equals the trimmed id
func (t *Table) Lookup(id string) (Record, bool) {
	if t == nil {
		return Record{}, false
	}
	r, ok := t.records[strings.TrimSpace(id)]
	return r, ok
}

// Len is the number of distinct ids
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Columns returns the header columns
func (t *Table) Columns() []string { return t.columns }

// IDColumn is the header name actually matched for ids
func (t *Table) IDColumn() string { return t.idColumn }

// Source is the path the table was read from
func (t *Table) Source() string { return t.source }

// LoadedAt is when the snapshot was built
func (t *Table) LoadedAt() time.Time { return t.loadedAt }

// Duplicates counts rows that replaced an earlier row with the same id
func (t *Table) Duplicates() int { return t.duplicates }

// LoadCSV reads a patient CSV from disk
func LoadCSV(path, idColumn string) (*Table, error) {
	cleanPath := filepath.Clean(path)
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read patient file %s: %w", cleanPath, err)
	}
	return ParseCSV(bytes.NewReader(raw), cleanPath, idColumn)
}

// ParseCSV builds a table from CSV content. Non-UTF-8 input is decoded as
// ISO-8859-1. Rows with a blank id are skipped; a repeated id keeps the last row.
func ParseCSV(r io.Reader, source, idColumn string) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read patient data: %w", err)
	}

	var reader io.Reader
	if utf8.Valid(raw) {
		reader = bytes.NewReader(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")))
	} else {
		reader = charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(raw))
	}

	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := uniqueColumns(header)
	idIdx := -1
	for i, col := range columns {
		if strings.EqualFold(col, strings.TrimSpace(idColumn)) {
			idIdx = i
			break
		}
	}
	if idIdx == -1 {
		return nil, fmt.Errorf("%w: %q (columns: %s)", ErrMissingIDColumn, idColumn, strings.Join(columns, ", "))
	}

	t := &Table{
		records:  make(map[string]Record),
		columns:  columns,
		idColumn: columns[idIdx],
		source:   source,
	}

	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if idIdx >= len(row) {
			t.skipped++
			continue
		}
		id := strings.TrimSpace(row[idIdx])
		if id == "" {
			t.skipped++
			continue
		}
		if _, exists := t.records[id]; exists {
			t.duplicates++
		}
		t.records[id] = NewRecord(columns, row)
	}

	if t.duplicates > 0 {
		logging.Warn("Duplicate patient ids in file, last row wins", "source", source, "duplicates", t.duplicates)
	}
	if t.skipped > 0 {
		logging.Debug("Skipped patient rows without id", "source", source, "skipped", t.skipped)
	}

	t.loadedAt = time.Now()
	return t, nil
}

// uniqueColumns trims header names and suffixes repeats as name_2, name_3, ...
// so every value of a row keeps its own key.
func uniqueColumns(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if seen[name] {
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d", name, n)
				if !seen[candidate] && !containsTrimmed(header, candidate) {
					name = candidate
					break
				}
			}
		}
		seen[name] = true
		columns[i] = name
	}
	return columns
}

func containsTrimmed(header []string, name string) bool {
	for _, h := range header {
		if strings.TrimSpace(h) == name {
			return true
		}
	}
	return false
}
