package report

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/utils"
)

// WriteBundle writes every table of b into dir and returns the files written.
// JSON keeps the typed bundle; CSV writes one file per table; XLSX and markdown write one file.
func WriteBundle(dir string, f Format, b analytics.Bundle, extra ...Table) ([]string, error) {
	tables := append(BundleTables(b), extra...)
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	switch f {
	case FormatJSON:
		data, err := utils.PrettyJSON(struct {
			analytics.Bundle
			Extra []Table `json:"extra,omitempty"`
		}{b, extra})
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, "bundle.json")
		return []string{path}, utils.SafeWriteFile(path, data)
	case FormatCSV:
		var files []string
		for _, t := range tables {
			var buf bytes.Buffer
			if err := WriteCSV(&buf, t); err != nil {
				return files, fmt.Errorf("%s: %w", t.Name, err)
			}
			path := filepath.Join(dir, t.Name+".csv")
			if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
				return files, err
			}
			files = append(files, path)
		}
		return files, nil
	case FormatXLSX:
		path := filepath.Join(dir, "report.xlsx")
		return []string{path}, WriteXLSX(path, tables...)
	case FormatMarkdown:
		path := filepath.Join(dir, "report.md")
		doc := fmt.Sprintf("# Region: %s\n\n%s", b.Region, Markdown(tables...))
		return []string{path}, utils.SafeWriteFile(path, []byte(doc))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}
