// Package clean turns raw source rows into typed records and derives calendar fields.
package clean

import (
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

// DateLayout is the day-month-year layout of source dates. Single-digit days and months are accepted.
const DateLayout = "2-1-2006"

// Report counts what the normalizer repaired or discarded in one batch.
type Report struct {
	Kind              dataset.Kind `json:"kind"`
	Input             int          `json:"input"`
	Retained          int          `json:"retained"`
	DroppedDates      int          `json:"dropped_dates"`
	CoercedValues     int          `json:"coerced_values"`
	NegativeValues    int          `json:"negative_values"`
	PlaceholderLabels int          `json:"placeholder_labels"`
	// MissingColumns lists measure columns absent from the batch header. Their values read as 0.
	MissingColumns []string `json:"missing_columns,omitempty"`
}

// LogValue implements slog.LogValuer.
func (r Report) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kind", r.Kind.String()),
		slog.Int("input", r.Input),
		slog.Int("retained", r.Retained),
		slog.Int("dropped_dates", r.DroppedDates),
		slog.Int("coerced_values", r.CoercedValues),
		slog.Int("negative_values", r.NegativeValues),
		slog.Int("placeholder_labels", r.PlaceholderLabels),
	)
}

// Normalize parses dates, coerces measures and canonicalizes labels.
// Rows with an unparseable date are the only rows dropped. Negative measures pass through.
// An empty batch yields no records and a zero report.
func Normalize(batch dataset.RawBatch) ([]dataset.Record, Report) {
	rep := Report{Kind: batch.Kind, Input: len(batch.Rows)}
	if len(batch.Rows) == 0 {
		return nil, rep
	}
	measures := batch.Kind.Measures()
	present := make([]string, len(measures))
	for i, m := range measures {
		present[i] = resolveColumn(batch, m)
		if present[i] == "" {
			rep.MissingColumns = append(rep.MissingColumns, m.Name)
		}
	}

	lab := dataset.NewLabeler()
	out := make([]dataset.Record, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		d, ok := ParseDate(row[dataset.ColDate])
		if !ok {
			rep.DroppedDates++
			continue
		}
		rec := dataset.Record{
			Kind:     batch.Kind,
			Date:     d,
			State:    lab.Label(row[dataset.ColState]),
			District: lab.Label(row[dataset.ColDistrict]),
			Pincode:  normalizePincode(row[dataset.ColPincode]),
			Values:   make([]int64, len(measures)),
		}
		if rec.State == dataset.MissingLabel {
			rep.PlaceholderLabels++
		}
		if rec.District == dataset.MissingLabel {
			rep.PlaceholderLabels++
		}
		for i, col := range present {
			if col == "" {
				continue
			}
			v, ok := ParseCount(row[col])
			if !ok {
				rep.CoercedValues++
			}
			if v < 0 {
				rep.NegativeValues++
			}
			rec.Values[i] = v
		}
		out = append(out, rec)
	}
	rep.Retained = len(out)
	return out, rep
}

func resolveColumn(batch dataset.RawBatch, m dataset.Measure) string {
	if batch.HasColumn(m.Name) {
		return m.Name
	}
	for _, a := range m.Aliases {
		if batch.HasColumn(a) {
			return a
		}
	}
	return ""
}

// ParseDate parses a day-month-year date. Time-of-day suffixes are not accepted.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseCount coerces a measure cell to an integer count. Fractions truncate toward zero.
// Empty or non-numeric input returns 0 and false.
func ParseCount(s string) (int64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

// normalizePincode strips the ".0" suffix spreadsheets add to numeric pincodes.
func normalizePincode(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return strings.TrimSuffix(s, ".0")
}
