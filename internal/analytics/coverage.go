package analytics

import (
	"sort"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

// Coverage states.
const (
	CoverageMatched     = "matched"
	CoverageUnmatched   = "unmatched"
	CoveragePlaceholder = "placeholder"
)

// RegionCoverage records which datasets mention a state label.
type RegionCoverage struct {
	State    string         `json:"state"`
	Datasets []dataset.Kind `json:"datasets"`
	Records  int            `json:"records"`
	Status   string         `json:"status"`
}

// Coverage lists every state label with the datasets it appears in. Labels missing from any
// non-empty dataset are unmatched; the missing-label placeholder is reported as such. Ordered
// with problems first, then by state.
func (e *Engine) Coverage(set dataset.Set) []RegionCoverage {
	var active []dataset.Kind
	seen := map[string]*RegionCoverage{}
	for _, k := range dataset.Kinds() {
		recs := set.Of(k)
		if len(recs) == 0 {
			continue
		}
		active = append(active, k)
		for _, r := range recs {
			c, ok := seen[r.State]
			if !ok {
				c = &RegionCoverage{State: r.State}
				seen[r.State] = c
			}
			if n := len(c.Datasets); n == 0 || c.Datasets[n-1] != k {
				c.Datasets = append(c.Datasets, k)
			}
			c.Records++
		}
	}
	out := make([]RegionCoverage, 0, len(seen))
	for _, c := range seen {
		switch {
		case c.State == dataset.MissingLabel:
			c.Status = CoveragePlaceholder
		case len(c.Datasets) < len(active):
			c.Status = CoverageUnmatched
		default:
			c.Status = CoverageMatched
		}
		out = append(out, *c)
	}
	rank := func(s string) int {
		switch s {
		case CoveragePlaceholder:
			return 0
		case CoverageUnmatched:
			return 1
		default:
			return 2
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if ri, rj := rank(out[i].Status), rank(out[j].Status); ri != rj {
			return ri < rj
		}
		return out[i].State < out[j].State
	})
	return out
}
