package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

// Level is the grouping depth of a region summary.
type Level string

const (
	LevelState    Level = "state"
	LevelDistrict Level = "district"
)

// ParseLevel accepts "state" (or empty) and "district".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "state":
		return LevelState, nil
	case "district":
		return LevelDistrict, nil
	}
	return "", fmt.Errorf("unknown level %q (use state or district)", s)
}

// KPIs are headline totals across the three datasets.
type KPIs struct {
	TotalEnrolments         int64   `json:"total_enrolments"`
	TotalDemographicUpdates int64   `json:"total_demo_updates"`
	TotalBiometricUpdates   int64   `json:"total_bio_updates"`
	TotalUpdates            int64   `json:"total_updates"`
	UpdateRatio             float64 `json:"update_enrolment_ratio"`
	EnrolmentRecords        int     `json:"enrolment_records"`
	DemographicRecords      int     `json:"demographic_records"`
	BiometricRecords        int     `json:"biometric_records"`
	States                  int     `json:"states"`
}

// KPIs sums every measure per dataset. UpdateRatio is 0 when there are no enrolments.
func (e *Engine) KPIs(set dataset.Set) KPIs {
	k := KPIs{
		TotalEnrolments:         sumTotals(set.Enrolment),
		TotalDemographicUpdates: sumTotals(set.Demographic),
		TotalBiometricUpdates:   sumTotals(set.Biometric),
		EnrolmentRecords:        len(set.Enrolment),
		DemographicRecords:      len(set.Demographic),
		BiometricRecords:        len(set.Biometric),
		States:                  len(set.States()),
	}
	k.TotalUpdates = k.TotalDemographicUpdates + k.TotalBiometricUpdates
	k.UpdateRatio = safeRatio(k.TotalUpdates, k.TotalEnrolments)
	return k
}

func sumTotals(recs []dataset.Record) int64 {
	var t int64
	for _, r := range recs {
		t += r.Total()
	}
	return t
}

func safeRatio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// RegionRow is one group of a region summary. Values align with RegionSummary.Measures.
type RegionRow struct {
	State    string  `json:"state"`
	District string  `json:"district,omitempty"`
	Values   []int64 `json:"values"`
	Total    int64   `json:"total"`
}

// RegionSummary sums measures per state or per (state, district).
type RegionSummary struct {
	Kind     dataset.Kind `json:"kind"`
	Level    Level        `json:"level"`
	Measures []string     `json:"measures"`
	Rows     []RegionRow  `json:"rows"`
}

// RegionSummary groups the records of kind k by level, ordered by key.
// An invalid kind yields an empty summary.
func (e *Engine) RegionSummary(set dataset.Set, k dataset.Kind, level Level) RegionSummary {
	if level != LevelDistrict {
		level = LevelState
	}
	out := RegionSummary{Kind: k, Level: level}
	if !k.Valid() {
		return out
	}
	out.Measures = k.MeasureNames()
	groups := map[regionKey]*RegionRow{}
	for _, r := range set.Of(k) {
		key := regionKey{State: r.State}
		if level == LevelDistrict {
			key.District = r.District
		}
		g, ok := groups[key]
		if !ok {
			g = &RegionRow{State: key.State, District: key.District, Values: make([]int64, len(out.Measures))}
			groups[key] = g
		}
		addValues(g.Values, r.Values)
		g.Total += r.Total()
	}
	keys := make([]regionKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	out.Rows = make([]RegionRow, 0, len(keys))
	for _, key := range keys {
		out.Rows = append(out.Rows, *groups[key])
	}
	return out
}

func addValues(dst, src []int64) {
	for i := range dst {
		if i < len(src) {
			dst[i] += src[i]
		}
	}
}

// TrendPoint is one resampled bucket.
type TrendPoint struct {
	Period time.Time `json:"period"`
	Values []int64   `json:"values"`
	Total  int64     `json:"total"`
}

// Trend is a chronologically ordered, gap-filled series of buckets.
type Trend struct {
	Kind      dataset.Kind `json:"kind"`
	Frequency Frequency    `json:"frequency"`
	Measures  []string     `json:"measures"`
	Points    []TrendPoint `json:"points"`
}

// Totals returns the per-bucket totals.
func (t Trend) Totals() []float64 {
	out := make([]float64, len(t.Points))
	for i, p := range t.Points {
		out[i] = float64(p.Total)
	}
	return out
}

// TimeTrend resamples kind k at the configured frequency.
func (e *Engine) TimeTrend(set dataset.Set, k dataset.Kind) Trend {
	return e.TimeTrendAt(set, k, e.cfg.Frequency)
}

// TimeTrendAt resamples kind k at freq. Buckets between the first and last observation
// without records are included with zero sums.
func (e *Engine) TimeTrendAt(set dataset.Set, k dataset.Kind, freq Frequency) Trend {
	if !freq.Valid() {
		freq = FreqMonth
	}
	out := Trend{Kind: k, Frequency: freq}
	if !k.Valid() {
		return out
	}
	out.Measures = k.MeasureNames()
	return resample(set.Of(k), freq, out)
}

func resample(recs []dataset.Record, freq Frequency, out Trend) Trend {
	if len(recs) == 0 {
		return out
	}
	buckets := map[time.Time]*TrendPoint{}
	var first, last time.Time
	for _, r := range recs {
		end := freq.BucketEnd(r.Date)
		p, ok := buckets[end]
		if !ok {
			p = &TrendPoint{Period: end, Values: make([]int64, len(out.Measures))}
			buckets[end] = p
		}
		addValues(p.Values, r.Values)
		p.Total += r.Total()
		if first.IsZero() || end.Before(first) {
			first = end
		}
		if end.After(last) {
			last = end
		}
	}
	for t := first; !t.After(last); t = freq.Next(t) {
		if p, ok := buckets[t]; ok {
			out.Points = append(out.Points, *p)
			continue
		}
		out.Points = append(out.Points, TrendPoint{Period: t, Values: make([]int64, len(out.Measures))})
	}
	return out
}
