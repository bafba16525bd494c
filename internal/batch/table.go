// Package batch reads the organization table and crawls every row.
package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMissingColumns is returned when the table lacks an organization or a
// website column.
var ErrMissingColumns = errors.New("table must have 'Organization' and 'Website' columns (case-insensitive)")

var (
	orgColumns = []string{"organization", "organisation", "org", "name"}
	urlColumns = []string{"website", "url", "root", "homepage"}
)

// Row is one organization to crawl.
type Row struct {
	Organization string
	Website      string
	Line         int // 1-based line in the input, header included
}

// ReadTable reads the CSV file at path.
func ReadTable(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input table: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := ParseTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ParseTable reads CSV records from r. The first matching header among the
// accepted aliases selects each column. Rows with an empty organization, an
// empty website or a website of "nan" are skipped.
func ParseTable(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrMissingColumns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	orgIdx := findColumn(header, orgColumns)
	urlIdx := findColumn(header, urlColumns)
	if orgIdx < 0 || urlIdx < 0 {
		return nil, ErrMissingColumns
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read table: %w", err)
		}

		line, _ := cr.FieldPos(0)
		org := field(record, orgIdx)
		website := field(record, urlIdx)
		if org == "" || website == "" || strings.EqualFold(website, "nan") {
			continue
		}
		rows = append(rows, Row{Organization: org, Website: website, Line: line})
	}
	return rows, nil
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for _, alias := range aliases {
			if name == alias {
				return i
			}
		}
	}
	return -1
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
