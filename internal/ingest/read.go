// Package ingest supplies raw dataset batches from tabular files or memory.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

// Table is the header and rows of one source file.
type Table struct {
	Columns []string
	Rows    []dataset.RawRow
}

// ReadFile reads a CSV, TSV or XLSX file according to its extension.
func ReadFile(path string, k dataset.Kind) (Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, k)
	case ".csv", ".tsv":
		f, err := os.Open(path)
		if err != nil {
			return Table{}, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		return ReadCSV(f, sniffDelimiter(path), k)
	default:
		return Table{}, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
}

// ReadCSV reads delimited rows. A zero delimiter means comma.
func ReadCSV(r io.Reader, delim rune, k dataset.Kind) (Table, error) {
	if delim == 0 {
		delim = ','
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, nil
		}
		return Table{}, fmt.Errorf("read header: %w", err)
	}
	t := Table{Columns: canonicalHeader(header, k)}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return t, fmt.Errorf("read row %d: %w", len(t.Rows)+2, err)
		}
		t.Rows = append(t.Rows, toRow(t.Columns, rec))
	}
	return t, nil
}

// ReadXLSX reads the first sheet of a workbook. The first row is the header.
func ReadXLSX(path string, k dataset.Kind) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return Table{}, nil
	}
	t := Table{Columns: canonicalHeader(rows[0], k)}
	for _, rec := range rows[1:] {
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, toRow(t.Columns, rec))
	}
	return t, nil
}

// canonicalHeader trims and lower-cases header cells and maps known aliases to measure names.
func canonicalHeader(header []string, k dataset.Kind) []string {
	alias := map[string]string{}
	for _, m := range k.Measures() {
		for _, a := range m.Aliases {
			alias[a] = m.Name
		}
	}
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := alias[h]; ok {
			h = canon
		}
		out[i] = h
	}
	return out
}

func toRow(cols, rec []string) dataset.RawRow {
	row := make(dataset.RawRow, len(cols))
	for i, c := range cols {
		if c == "" || i >= len(rec) {
			continue
		}
		row[c] = rec[i]
	}
	return row
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
