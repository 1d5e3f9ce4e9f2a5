package analytics

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

// quantile interpolates linearly between closest ranks: pos = q*(n-1).
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// pearson returns the correlation of x and y, or 0 when it is undefined.
func pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

type regionKey struct {
	State, District string
}

func (k regionKey) less(o regionKey) bool {
	if k.State != o.State {
		return k.State < o.State
	}
	return k.District < o.District
}

// DistrictLoad is the average load of one district under a LoadBasis.
type DistrictLoad struct {
	State    string  `json:"state"`
	District string  `json:"district"`
	Load     float64 `json:"load"`
	// Buckets is the number of months or records averaged.
	Buckets int `json:"buckets"`
}

// districtLoads averages record totals per (state, district), sorted by key.
func districtLoads(recs []dataset.Record, basis LoadBasis) []DistrictLoad {
	if len(recs) == 0 {
		return nil
	}
	samples := map[regionKey][]float64{}
	switch basis {
	case LoadPerRecord:
		for _, r := range recs {
			k := regionKey{r.State, r.District}
			samples[k] = append(samples[k], float64(r.Total()))
		}
	default:
		type monthKey struct {
			regionKey
			end time.Time
		}
		sums := map[monthKey]int64{}
		for _, r := range recs {
			sums[monthKey{regionKey{r.State, r.District}, FreqMonth.BucketEnd(r.Date)}] += r.Total()
		}
		for k, v := range sums {
			samples[k.regionKey] = append(samples[k.regionKey], float64(v))
		}
	}
	out := make([]DistrictLoad, 0, len(samples))
	for k, vals := range samples {
		out = append(out, DistrictLoad{State: k.State, District: k.District, Load: stat.Mean(vals, nil), Buckets: len(vals)})
	}
	sort.Slice(out, func(i, j int) bool {
		return regionKey{out[i].State, out[i].District}.less(regionKey{out[j].State, out[j].District})
	})
	return out
}

// DistrictLoads exposes the per-district averages used by outliers and recommendations.
func (e *Engine) DistrictLoads(set dataset.Set, k dataset.Kind) []DistrictLoad {
	return districtLoads(set.Of(k), e.cfg.LoadBasis)
}
