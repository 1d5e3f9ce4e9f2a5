package analytics

import (
	"sort"
	"time"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

// RegionRatio is the update pressure of one state.
type RegionRatio struct {
	State              string  `json:"state"`
	Enrolments         int64   `json:"total_enrolments"`
	DemographicUpdates int64   `json:"total_demo_updates"`
	BiometricUpdates   int64   `json:"total_bio_updates"`
	TotalUpdates       int64   `json:"total_updates"`
	Ratio              float64 `json:"update_enrolment_ratio"`
}

// UpdateRatios computes total_updates / total_enrolments per state, sorted by ratio descending
// with the state name breaking ties. States missing from a dataset contribute 0 for it; a state
// without enrolments has ratio 0. The result is empty when there are no enrolments at all or
// no updates of either kind.
func (e *Engine) UpdateRatios(set dataset.Set) []RegionRatio {
	if len(set.Enrolment) == 0 || (len(set.Demographic) == 0 && len(set.Biometric) == 0) {
		return nil
	}
	rows := map[string]*RegionRatio{}
	get := func(state string) *RegionRatio {
		r, ok := rows[state]
		if !ok {
			r = &RegionRatio{State: state}
			rows[state] = r
		}
		return r
	}
	for _, r := range set.Enrolment {
		get(r.State).Enrolments += r.Total()
	}
	for _, r := range set.Demographic {
		get(r.State).DemographicUpdates += r.Total()
	}
	for _, r := range set.Biometric {
		get(r.State).BiometricUpdates += r.Total()
	}
	out := make([]RegionRatio, 0, len(rows))
	for _, r := range rows {
		r.TotalUpdates = r.DemographicUpdates + r.BiometricUpdates
		r.Ratio = safeRatio(r.TotalUpdates, r.Enrolments)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ratio != out[j].Ratio {
			return out[i].Ratio > out[j].Ratio
		}
		return out[i].State < out[j].State
	})
	return out
}

// CorrelationMatrix is a symmetric Pearson matrix across dataset daily totals.
type CorrelationMatrix struct {
	Series []string       `json:"series"`
	Kinds  []dataset.Kind `json:"kinds"`
	// Values is row-major, Values[i][j].
	Values [][]float64 `json:"values"`
	// Dates is the number of aligned observation dates.
	Dates int `json:"dates"`
}

// Correlation aligns one daily total series per non-empty dataset on the union of dates,
// filling missing dates with 0, and correlates every pair. Undefined coefficients are 0.
// With no data the matrix is empty.
func (e *Engine) Correlation(set dataset.Set) CorrelationMatrix {
	var out CorrelationMatrix
	perKind := map[dataset.Kind]map[time.Time]float64{}
	dates := map[time.Time]struct{}{}
	for _, k := range dataset.Kinds() {
		recs := set.Of(k)
		if len(recs) == 0 {
			continue
		}
		daily := map[time.Time]float64{}
		for _, r := range recs {
			d := FreqDay.BucketEnd(r.Date)
			daily[d] += float64(r.Total())
			dates[d] = struct{}{}
		}
		perKind[k] = daily
		out.Kinds = append(out.Kinds, k)
		out.Series = append(out.Series, k.Label())
	}
	if len(out.Kinds) == 0 {
		return out
	}
	axis := make([]time.Time, 0, len(dates))
	for d := range dates {
		axis = append(axis, d)
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })
	out.Dates = len(axis)

	series := make([][]float64, len(out.Kinds))
	for i, k := range out.Kinds {
		series[i] = make([]float64, len(axis))
		for j, d := range axis {
			series[i][j] = perKind[k][d]
		}
	}
	out.Values = make([][]float64, len(series))
	for i := range series {
		out.Values[i] = make([]float64, len(series))
		out.Values[i][i] = 1
	}
	for i := 0; i < len(series); i++ {
		for j := i + 1; j < len(series); j++ {
			r := pearson(series[i], series[j])
			out.Values[i][j] = r
			out.Values[j][i] = r
		}
	}
	return out
}

// Outlier tags.
const (
	HighOutlier = "High Outlier"
	LowOutlier  = "Low Outlier"
)

// OutlierMultiplier is the IQR whisker length.
const OutlierMultiplier = 1.5

// Outlier is a district whose average load falls outside the IQR fences.
type Outlier struct {
	State    string  `json:"state"`
	District string  `json:"district"`
	Load     float64 `json:"load"`
	Status   string  `json:"status"`
}

// OutlierReport carries the fences alongside the flagged districts.
type OutlierReport struct {
	Kind      dataset.Kind `json:"kind"`
	Status    Status       `json:"status"`
	Districts int          `json:"districts"`
	Q1        float64      `json:"q1"`
	Q3        float64      `json:"q3"`
	IQR       float64      `json:"iqr"`
	Lower     float64      `json:"lower_bound"`
	Upper     float64      `json:"upper_bound"`
	Outliers  []Outlier    `json:"outliers"`
}

// DistrictOutliers flags districts of kind k by the 1.5×IQR rule over per-district average load.
func (e *Engine) DistrictOutliers(set dataset.Set, k dataset.Kind) OutlierReport {
	out := OutlierReport{Kind: k, Status: StatusNoData}
	if !k.Valid() {
		return out
	}
	return detectOutliers(districtLoads(set.Of(k), e.cfg.LoadBasis), out)
}

func detectOutliers(loads []DistrictLoad, out OutlierReport) OutlierReport {
	if len(loads) == 0 {
		return out
	}
	vals := make([]float64, len(loads))
	for i, l := range loads {
		vals[i] = l.Load
	}
	sort.Float64s(vals)
	out.Status = StatusOK
	out.Districts = len(loads)
	out.Q1 = quantile(vals, 0.25)
	out.Q3 = quantile(vals, 0.75)
	out.IQR = out.Q3 - out.Q1
	out.Lower = out.Q1 - OutlierMultiplier*out.IQR
	out.Upper = out.Q3 + OutlierMultiplier*out.IQR
	for _, l := range loads {
		switch {
		case l.Load > out.Upper:
			out.Outliers = append(out.Outliers, Outlier{State: l.State, District: l.District, Load: l.Load, Status: HighOutlier})
		case l.Load < out.Lower:
			out.Outliers = append(out.Outliers, Outlier{State: l.State, District: l.District, Load: l.Load, Status: LowOutlier})
		}
	}
	sort.SliceStable(out.Outliers, func(i, j int) bool { return out.Outliers[i].Load > out.Outliers[j].Load })
	return out
}
