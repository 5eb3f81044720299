// Package trades parses raw trade-log files (CSV or XLSX) into rows and
// builds the bounded markdown digest handed to the generation backend.
// Parsing is header-driven and tolerant: columns are passed through as-is
// and no analytics are computed here.
package trades

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Log holds a parsed trade log.
type Log struct {
	Headers []string
	Rows    [][]string
}

// Parse picks the parser by file extension. Files without a recognized
// extension are treated as CSV, the common case.
func Parse(name string, data []byte) (*Log, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return ParseXLSX(data)
	default:
		return ParseCSV(data)
	}
}

// ParseCSV parses CSV content. The first row is the header.
func ParseCSV(data []byte) (*Log, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	var log Log
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "trades: read csv row")
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		if log.Headers == nil {
			log.Headers = record
			continue
		}
		log.Rows = append(log.Rows, record)
	}
	if log.Headers == nil {
		return nil, eris.New("trades: empty csv")
	}
	return &log, nil
}

// ParseXLSX parses the first sheet of an XLSX workbook. The first row is
// the header.
func ParseXLSX(data []byte) (*Log, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "trades: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("trades: xlsx has no sheets")
	}

	var log Log
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = strings.TrimSpace(cell.String())
		}
		if log.Headers == nil {
			log.Headers = cells
			continue
		}
		log.Rows = append(log.Rows, cells)
	}
	if log.Headers == nil {
		return nil, eris.New("trades: empty xlsx sheet")
	}
	return &log, nil
}

// Digest renders a markdown table sampling up to maxRows rows, prefixed
// with the total row count, bounded so huge logs don't blow up the prompt.
func (l *Log) Digest(maxRows int) string {
	if maxRows <= 0 {
		maxRows = 20
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total trades: %d\n\n", len(l.Rows))

	b.WriteString("| " + strings.Join(l.Headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(l.Headers)) + "\n")

	n := len(l.Rows)
	if n > maxRows {
		n = maxRows
	}
	for _, row := range l.Rows[:n] {
		cells := make([]string, len(l.Headers))
		for i := range l.Headers {
			if i < len(row) {
				cells[i] = row[i]
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	if len(l.Rows) > maxRows {
		fmt.Fprintf(&b, "\n(%d more rows omitted)\n", len(l.Rows)-maxRows)
	}
	return b.String()
}
