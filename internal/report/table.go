// Package report turns analytics results into uniform tables and renders them.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/clean"
)

// Table is a row-oriented result with string cells.
type Table struct {
	// Name is a file and sheet friendly identifier.
	Name    string     `json:"name"`
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Records returns the rows as column-keyed maps.
func (t Table) Records() []map[string]string {
	out := make([]map[string]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		m := make(map[string]string, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(r) {
				m[c] = r[i]
			}
		}
		out = append(out, m)
	}
	return out
}

const dateLayout = "2006-01-02"

func fmtInt(v int64) string { return strconv.FormatInt(v, 10) }

// fmtFloat rounds to four decimals and drops trailing zeros.
func fmtFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', 4, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

func fmtDate(t time.Time) string { return t.Format(dateLayout) }

// KPITable lists headline totals as metric/value pairs.
func KPITable(k analytics.KPIs) Table {
	return Table{
		Name:    "kpis",
		Title:   "Key Indicators",
		Columns: []string{"metric", "value"},
		Rows: [][]string{
			{"total_enrolments", fmtInt(k.TotalEnrolments)},
			{"total_demo_updates", fmtInt(k.TotalDemographicUpdates)},
			{"total_bio_updates", fmtInt(k.TotalBiometricUpdates)},
			{"total_updates", fmtInt(k.TotalUpdates)},
			{"update_enrolment_ratio", fmtFloat(k.UpdateRatio)},
			{"enrolment_records", strconv.Itoa(k.EnrolmentRecords)},
			{"demographic_records", strconv.Itoa(k.DemographicRecords)},
			{"biometric_records", strconv.Itoa(k.BiometricRecords)},
			{"states", strconv.Itoa(k.States)},
		},
	}
}

// SummaryTable renders a region summary with one column per measure plus total.
func SummaryTable(s analytics.RegionSummary) Table {
	t := Table{Name: "summary_" + s.Kind.String(), Title: s.Kind.Label() + " by " + string(s.Level)}
	t.Columns = []string{"state"}
	if s.Level == analytics.LevelDistrict {
		t.Name += "_district"
		t.Columns = append(t.Columns, "district")
	}
	t.Columns = append(t.Columns, s.Measures...)
	t.Columns = append(t.Columns, "total")
	for _, r := range s.Rows {
		row := []string{r.State}
		if s.Level == analytics.LevelDistrict {
			row = append(row, r.District)
		}
		for _, v := range r.Values {
			row = append(row, fmtInt(v))
		}
		row = append(row, fmtInt(r.Total))
		t.Rows = append(t.Rows, row)
	}
	return t
}

// TrendTable renders one row per bucket.
func TrendTable(tr analytics.Trend) Table {
	t := Table{
		Name:    "trend_" + tr.Kind.String(),
		Title:   fmt.Sprintf("%s trend (%s)", tr.Kind.Label(), tr.Frequency),
		Columns: append(append([]string{"date"}, tr.Measures...), "total"),
	}
	for _, p := range tr.Points {
		row := []string{fmtDate(p.Period)}
		for _, v := range p.Values {
			row = append(row, fmtInt(v))
		}
		t.Rows = append(t.Rows, append(row, fmtInt(p.Total)))
	}
	return t
}

// RatioTable renders state update pressure in ranked order.
func RatioTable(rs []analytics.RegionRatio) Table {
	t := Table{
		Name:    "ratios",
		Title:   "Update to Enrolment Ratio",
		Columns: []string{"state", "total_enrolments", "total_demo_updates", "total_bio_updates", "total_updates", "update_enrolment_ratio"},
	}
	for _, r := range rs {
		t.Rows = append(t.Rows, []string{
			r.State, fmtInt(r.Enrolments), fmtInt(r.DemographicUpdates), fmtInt(r.BiometricUpdates),
			fmtInt(r.TotalUpdates), fmtFloat(r.Ratio),
		})
	}
	return t
}

// CorrelationTable renders the matrix with a leading series column.
func CorrelationTable(m analytics.CorrelationMatrix) Table {
	t := Table{Name: "correlation", Title: "Correlation Matrix", Columns: append([]string{"series"}, m.Series...)}
	for i, name := range m.Series {
		row := []string{name}
		for _, v := range m.Values[i] {
			row = append(row, fmtFloat(v))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// OutlierTable renders flagged districts. The fences go into the title.
func OutlierTable(o analytics.OutlierReport) Table {
	t := Table{
		Name:    "outliers_" + o.Kind.String(),
		Title:   fmt.Sprintf("%s district outliers (Q1 %s, Q3 %s, bounds [%s, %s])", o.Kind.Label(), fmtFloat(o.Q1), fmtFloat(o.Q3), fmtFloat(o.Lower), fmtFloat(o.Upper)),
		Columns: []string{"state", "district", "load", "status"},
	}
	for _, x := range o.Outliers {
		t.Rows = append(t.Rows, []string{x.State, x.District, fmtFloat(x.Load), x.Status})
	}
	return t
}

// ForecastTable renders actual and projected points.
func ForecastTable(f analytics.Forecast) Table {
	t := Table{Name: "forecast_" + f.Kind.String(), Title: f.Kind.Label() + " forecast", Columns: []string{"date", "forecast", "type"}}
	for _, p := range f.Points {
		t.Rows = append(t.Rows, []string{fmtDate(p.Period), fmtFloat(p.Value), string(p.Type)})
	}
	return t
}

// RecommendationTable renders the action list.
func RecommendationTable(rs []analytics.Recommendation) Table {
	t := Table{Name: "recommendations", Title: "Recommendations", Columns: []string{"state", "district", "issue", "action", "priority"}}
	for _, r := range rs {
		t.Rows = append(t.Rows, []string{r.State, r.District, r.Issue, r.Action, string(r.Priority)})
	}
	return t
}

// CoverageTable renders region label coverage.
func CoverageTable(cs []analytics.RegionCoverage) Table {
	t := Table{Name: "coverage", Title: "Region Coverage", Columns: []string{"state", "datasets", "records", "status"}}
	for _, c := range cs {
		names := make([]string, len(c.Datasets))
		for i, k := range c.Datasets {
			names[i] = k.String()
		}
		t.Rows = append(t.Rows, []string{c.State, strings.Join(names, ";"), strconv.Itoa(c.Records), c.Status})
	}
	return t
}

// CleaningTable renders per-kind cleaning reports.
func CleaningTable(reps []clean.Report) Table {
	t := Table{
		Name:    "cleaning",
		Title:   "Data Quality",
		Columns: []string{"dataset", "input", "retained", "dropped_dates", "coerced_values", "negative_values", "placeholder_labels", "missing_columns"},
	}
	for _, r := range reps {
		t.Rows = append(t.Rows, []string{
			r.Kind.String(), strconv.Itoa(r.Input), strconv.Itoa(r.Retained), strconv.Itoa(r.DroppedDates),
			strconv.Itoa(r.CoercedValues), strconv.Itoa(r.NegativeValues), strconv.Itoa(r.PlaceholderLabels),
			strings.Join(r.MissingColumns, ";"),
		})
	}
	return t
}

// BundleTables flattens a bundle in a stable order.
func BundleTables(b analytics.Bundle) []Table {
	out := []Table{KPITable(b.KPIs)}
	for _, s := range b.Summaries {
		out = append(out, SummaryTable(s))
	}
	for _, tr := range b.Trends {
		out = append(out, TrendTable(tr))
	}
	out = append(out, RatioTable(b.Ratios), CorrelationTable(b.Correlation))
	for _, o := range b.Outliers {
		out = append(out, OutlierTable(o))
	}
	for _, f := range b.Forecasts {
		out = append(out, ForecastTable(f))
	}
	return append(out, RecommendationTable(b.Recommendations), CoverageTable(b.Coverage))
}
