package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

// Priority ranks a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
)

// Recommendation actions.
const (
	ActionMobileEnrolment = "Deploy Mobile Enrolment Unit"
	ActionBiometricCamp   = "Schedule Special Biometric Camp"
)

// Recommendation is one operational action for a district.
type Recommendation struct {
	State    string       `json:"state"`
	District string       `json:"district"`
	Issue    string       `json:"issue"`
	Action   string       `json:"action"`
	Priority Priority     `json:"priority"`
	Kind     dataset.Kind `json:"kind"`
	Load     float64      `json:"load"`
}

type rule struct {
	kind      dataset.Kind
	threshold float64
	issue     string
	action    string
	priority  Priority
}

func (e *Engine) rules() []rule {
	return []rule{
		{dataset.Enrolment, e.cfg.EnrolmentThreshold, "High Enrolment Load (Avg %d/month)", ActionMobileEnrolment, PriorityHigh},
		{dataset.BiometricUpdate, e.cfg.BiometricThreshold, "High Biometric Update Load (Avg %d/month)", ActionBiometricCamp, PriorityMedium},
	}
}

// Recommendations evaluates the enrolment and biometric threshold rules independently.
// A district fires a rule when its average load strictly exceeds the threshold, so it can
// appear once per rule. Enrolment actions come first; each rule's list is ordered by load
// descending, then by state and district.
func (e *Engine) Recommendations(set dataset.Set) []Recommendation {
	var out []Recommendation
	for _, r := range e.rules() {
		var fired []Recommendation
		for _, l := range districtLoads(set.Of(r.kind), e.cfg.LoadBasis) {
			if !(l.Load > r.threshold) {
				continue
			}
			fired = append(fired, Recommendation{
				State:    l.State,
				District: l.District,
				Issue:    fmt.Sprintf(r.issue, int64(math.Floor(l.Load))),
				Action:   r.action,
				Priority: r.priority,
				Kind:     r.kind,
				Load:     l.Load,
			})
		}
		// districtLoads is key-ordered, so a stable sort keeps ties by state then district.
		sort.SliceStable(fired, func(i, j int) bool { return fired[i].Load > fired[j].Load })
		out = append(out, fired...)
	}
	return out
}
