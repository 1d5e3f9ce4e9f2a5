package analytics

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

// PointType marks a forecast point as observed or projected.
type PointType string

const (
	PointActual   PointType = "Actual"
	PointForecast PointType = "Forecast"
)

// MinForecastPoints is the shortest monthly history a trend line is fitted to.
const MinForecastPoints = 2

// ForecastPoint is one month of a forecast series.
type ForecastPoint struct {
	Period time.Time `json:"date"`
	Value  float64   `json:"forecast"`
	Type   PointType `json:"type"`
}

// Forecast is the observed monthly series followed by the projected months.
type Forecast struct {
	Kind      dataset.Kind    `json:"kind"`
	Status    Status          `json:"status"`
	Periods   int             `json:"periods"`
	Slope     float64         `json:"slope"`
	Intercept float64         `json:"intercept"`
	Points    []ForecastPoint `json:"points"`
}

// Actuals returns the observed points.
func (f Forecast) Actuals() []ForecastPoint { return f.filter(PointActual) }

// Projected returns the forecast points.
func (f Forecast) Projected() []ForecastPoint { return f.filter(PointForecast) }

func (f Forecast) filter(t PointType) []ForecastPoint {
	var out []ForecastPoint
	for _, p := range f.Points {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// Forecast projects kind k forward by the configured number of periods.
func (e *Engine) Forecast(set dataset.Set, k dataset.Kind) Forecast {
	return e.ForecastHorizon(set, k, e.cfg.ForecastPeriods)
}

// ForecastHorizon fits an OLS line to the month-end totals of kind k against their ordinal
// position and extends it by periods month ends. Fewer than two months yields no points.
func (e *Engine) ForecastHorizon(set dataset.Set, k dataset.Kind, periods int) Forecast {
	if periods < 0 {
		periods = 0
	}
	out := Forecast{Kind: k, Status: StatusNoData, Periods: periods}
	if !k.Valid() {
		return out
	}
	monthly := e.TimeTrendAt(set, k, FreqMonth)
	n := len(monthly.Points)
	if n == 0 {
		return out
	}
	if n < MinForecastPoints {
		out.Status = StatusInsufficient
		return out
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	ys := monthly.Totals()
	out.Intercept, out.Slope = stat.LinearRegression(xs, ys, nil, false)
	out.Status = StatusOK

	out.Points = make([]ForecastPoint, 0, n+periods)
	for i, p := range monthly.Points {
		out.Points = append(out.Points, ForecastPoint{Period: p.Period, Value: ys[i], Type: PointActual})
	}
	next := monthly.Points[n-1].Period
	for i := 0; i < periods; i++ {
		next = FreqMonth.Next(next)
		x := float64(n + i)
		out.Points = append(out.Points, ForecastPoint{Period: next, Value: out.Intercept + out.Slope*x, Type: PointForecast})
	}
	return out
}
