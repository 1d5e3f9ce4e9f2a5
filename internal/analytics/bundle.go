package analytics

import "github.com/KaramelBytes/uidpulse/internal/dataset"

// Bundle is every result table for one region slice.
type Bundle struct {
	Region          string            `json:"region"`
	Records         int               `json:"records"`
	KPIs            KPIs              `json:"kpis"`
	Summaries       []RegionSummary   `json:"summaries"`
	Trends          []Trend           `json:"trends"`
	Ratios          []RegionRatio     `json:"ratios"`
	Correlation     CorrelationMatrix `json:"correlation"`
	Outliers        []OutlierReport   `json:"outliers"`
	Forecasts       []Forecast        `json:"forecasts"`
	Recommendations []Recommendation  `json:"recommendations"`
	Coverage        []RegionCoverage  `json:"coverage"`
}

// BundleKinds are the datasets that get outlier and forecast tables in a bundle.
var BundleKinds = []dataset.Kind{dataset.Enrolment, dataset.BiometricUpdate}

// Bundle computes all results for set, which the caller has already sliced to region.
func (e *Engine) Bundle(set dataset.Set, region string) Bundle {
	if dataset.IsAllRegions(region) {
		region = dataset.AllRegions
	}
	b := Bundle{
		Region:          region,
		Records:         set.Len(),
		KPIs:            e.KPIs(set),
		Ratios:          e.UpdateRatios(set),
		Correlation:     e.Correlation(set),
		Recommendations: e.Recommendations(set),
		Coverage:        e.Coverage(set),
	}
	for _, k := range dataset.Kinds() {
		b.Summaries = append(b.Summaries, e.RegionSummary(set, k, LevelState))
		b.Trends = append(b.Trends, e.TimeTrend(set, k))
	}
	for _, k := range BundleKinds {
		b.Outliers = append(b.Outliers, e.DistrictOutliers(set, k))
		b.Forecasts = append(b.Forecasts, e.Forecast(set, k))
	}
	return b
}
