package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/xuri/excelize/v2"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Format is an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatXLSX     Format = "xlsx"
	FormatMarkdown Format = "markdown"
	FormatTable    Format = "table"
)

// ParseFormat resolves a format name. "md" is accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "table", "", "text":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Write renders tables to w. XLSX output is a complete workbook.
func Write(w io.Writer, f Format, tables ...Table) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, tables)
	case FormatCSV:
		for i, t := range tables {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if err := WriteCSV(w, t); err != nil {
				return err
			}
		}
		return nil
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(tables...))
		return err
	case FormatTable:
		for _, t := range tables {
			Console(w, t)
		}
		return nil
	case FormatXLSX:
		wb, err := buildWorkbook(tables)
		if err != nil {
			return err
		}
		defer wb.Close()
		return wb.Write(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// WriteJSON writes v indented.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteCSV writes one table with a header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range t.Rows {
		if err := cw.Write(r); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Markdown renders tables as GitHub-flavoured markdown sections.
func Markdown(tables ...Table) string {
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("## %s\n\n", t.Title))
		if len(t.Rows) == 0 {
			b.WriteString("_No data._\n")
			continue
		}
		b.WriteString("| " + strings.Join(escapeAll(t.Columns), " | ") + " |\n")
		b.WriteString("|" + strings.Repeat(" --- |", len(t.Columns)) + "\n")
		for _, r := range t.Rows {
			b.WriteString("| " + strings.Join(escapeAll(r), " | ") + " |\n")
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

func escapeAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = safeVal(s)
	}
	return out
}

// Console renders a boxed table for terminals.
func Console(w io.Writer, t Table) {
	if t.Title != "" {
		fmt.Fprintf(w, "%s\n", t.Title)
	}
	if len(t.Rows) == 0 {
		fmt.Fprintln(w, "  (no data)")
		return
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(t.Rows)
	tw.Render()
}

// WriteXLSX saves tables to path, one sheet per table.
func WriteXLSX(path string, tables ...Table) error {
	f, err := buildWorkbook(tables)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

func buildWorkbook(tables []Table) (*excelize.File, error) {
	f := excelize.NewFile()
	first := f.GetSheetName(0)
	used := map[string]bool{}
	for i, t := range tables {
		name := sheetName(t.Name, used)
		if i == 0 {
			if err := f.SetSheetName(first, name); err != nil {
				f.Close()
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("new sheet %q: %w", name, err)
		}
		if err := fillSheet(f, name, t); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func fillSheet(f *excelize.File, sheet string, t Table) error {
	for j, c := range t.Columns {
		cell, _ := excelize.CoordinatesToCellName(j+1, 1)
		if err := f.SetCellValue(sheet, cell, c); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
		_ = f.SetColWidth(sheet, colName(j), colName(j), 18)
	}
	for i, r := range t.Rows {
		for j, v := range r {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			var val any = v
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				val = n
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
			}
		}
	}
	return nil
}

func colName(i int) string {
	n, _ := excelize.ColumnNumberToName(i + 1)
	return n
}

// sheetName trims to the 31 character limit and keeps names unique.
func sheetName(name string, used map[string]bool) string {
	if name == "" {
		name = "table"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	base := name
	for i := 2; used[name]; i++ {
		suffix := "_" + strconv.Itoa(i)
		if len(base)+len(suffix) > 31 {
			name = base[:31-len(suffix)] + suffix
		} else {
			name = base + suffix
		}
	}
	used[name] = true
	return name
}
