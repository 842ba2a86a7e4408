// SPDX-License-Identifier: MIT

// Package changelist reads the operator-maintained CSV of dated membership
// directives. It only frames rows; semantic validation lives in directive.
package changelist

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrSourceUnavailable is returned when the change list cannot be opened or framed.
var ErrSourceUnavailable = errors.New("change list unavailable")

// Column names recognised in the header row.
const (
	ColumnUserID = "user_id"
	ColumnDate   = "date"
	ColumnAction = "action"
)

// Row is one data row exactly as read, before validation.
type Row struct {
	Line     int // 1-based line number; the header is line 1
	MemberID string
	Date     string
	Action   string
}

// Source produces the full set of rows for a run.
type Source interface {
	Load(ctx context.Context) ([]Row, error)
}

// FileSource loads rows from a CSV file on disk.
type FileSource struct {
	Path string
}

// NewFileSource returns a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Load reads the whole file. Every failure is wrapped in ErrSourceUnavailable.
func (s *FileSource) Load(ctx context.Context) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	// #nosec G304 -- the change list path is provided by the operator via config
	f, err := os.Open(filepath.Clean(s.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrSourceUnavailable, s.Path, err)
	}
	defer f.Close()

	rows, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return rows, nil
}

// Parse frames CSV content from r. A leading byte order mark is honoured so
// spreadsheet exports (UTF-8 or UTF-16) load unchanged.
func Parse(r io.Reader) ([]Row, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header row", ErrSourceUnavailable)
		}
		return nil, fmt.Errorf("%w: read header: %w", ErrSourceUnavailable, err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		line, _ := reader.FieldPos(0)
		if isBlank(record) {
			continue
		}
		rows = append(rows, Row{
			Line:     line,
			MemberID: cell(record, idx[ColumnUserID]),
			Date:     cell(record, idx[ColumnDate]),
			Action:   cell(record, idx[ColumnAction]),
		})
	}
	return rows, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, 3)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	var missing []string
	for _, required := range []string{ColumnUserID, ColumnDate, ColumnAction} {
		if _, ok := idx[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: header missing column(s) %s", ErrSourceUnavailable, strings.Join(missing, ", "))
	}
	return idx, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
