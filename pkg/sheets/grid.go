package sheets

import (
	"fmt"
	"regexp"
	"strings"
)

// spreadsheetIDPattern matches the document id inside a
// docs.google.com/spreadsheets URL.
var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SpreadsheetIDFromURL extracts the document id from a Google Sheets URL.
func SpreadsheetIDFromURL(sheetURL string) (string, error) {
	m := spreadsheetIDPattern.FindStringSubmatch(sheetURL)
	if m == nil {
		return "", fmt.Errorf("not a Google Sheets URL: %s", sheetURL)
	}
	return m[1], nil
}

// Header is a non-blank column header with its original column index.
type Header struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// MetricValue is one configured metric resolved against a data row.
type MetricValue struct {
	Metric     string `json:"metric"`
	ColumnName string `json:"column_name"`
	Index      int    `json:"index"`
	Value      string `json:"value"`
}

// MetricIndex names a metric and the column it is configured to live in.
type MetricIndex struct {
	Name  string
	Index int
}

// HeaderRowIndex locates the header row: the first row containing a "Data"
// cell (the date column of the source spreadsheets), falling back to the
// first row.
func HeaderRowIndex(rows [][]string) int {
	for i, row := range rows {
		for _, cell := range row {
			if cell == "Data" {
				return i
			}
		}
	}
	return 0
}

// Headers returns the non-blank headers of the header row with their
// original column indices.
func Headers(rows [][]string) []Header {
	idx := HeaderRowIndex(rows)
	if idx >= len(rows) {
		return nil
	}

	var headers []Header
	for i, name := range rows[idx] {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		headers = append(headers, Header{Index: i, Name: name})
	}
	return headers
}

// LatestRow returns the last data row, or nil when the grid has no rows
// below the header.
func LatestRow(rows [][]string) []string {
	idx := HeaderRowIndex(rows)
	if len(rows) <= idx+1 {
		return nil
	}
	return rows[len(rows)-1]
}

// MapMetrics resolves each configured metric column against the header row
// and a data row. Out-of-range columns yield "N/A" so one misconfigured index
// never breaks the whole mapping.
func MapMetrics(headers, row []string, metrics []MetricIndex) []MetricValue {
	results := make([]MetricValue, 0, len(metrics))
	for _, m := range metrics {
		columnName := fmt.Sprintf("Column %d", m.Index)
		if m.Index >= 0 && m.Index < len(headers) {
			columnName = headers[m.Index]
		}
		value := "N/A"
		if m.Index >= 0 && m.Index < len(row) {
			value = row[m.Index]
		}
		results = append(results, MetricValue{
			Metric:     m.Name,
			ColumnName: columnName,
			Index:      m.Index,
			Value:      value,
		})
	}
	return results
}
