package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when a dataset selector does not name a known kind.
var ErrUnknownKind = errors.New("unknown dataset kind")

// Kind identifies one of the three ingested datasets. Each kind carries its own
// fixed set of measure columns.
type Kind int

const (
	Enrolment Kind = iota + 1
	DemographicUpdate
	BiometricUpdate
)

// Measure is a count column for one age band of a dataset.
type Measure struct {
	Name string
	// Aliases are alternative header spellings found in source files.
	Aliases []string
}

var (
	enrolmentMeasures = []Measure{
		{Name: "age_0_5"},
		{Name: "age_5_17"},
		{Name: "age_18_plus", Aliases: []string{"age_18_greater"}},
	}
	demographicMeasures = []Measure{
		{Name: "demo_age_5_17"},
		{Name: "demo_age_18_plus", Aliases: []string{"demo_age_17_"}},
	}
	biometricMeasures = []Measure{
		{Name: "bio_age_5_17"},
		{Name: "bio_age_18_plus", Aliases: []string{"bio_age_17_"}},
	}
)

// Kinds lists every dataset kind in a stable order.
func Kinds() []Kind { return []Kind{Enrolment, DemographicUpdate, BiometricUpdate} }

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool { return k >= Enrolment && k <= BiometricUpdate }

// Measures returns the measure columns of the kind. The returned slice must not be modified.
func (k Kind) Measures() []Measure {
	switch k {
	case Enrolment:
		return enrolmentMeasures
	case DemographicUpdate:
		return demographicMeasures
	case BiometricUpdate:
		return biometricMeasures
	default:
		return nil
	}
}

// MeasureNames returns the canonical measure column names of the kind.
func (k Kind) MeasureNames() []string {
	ms := k.Measures()
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name
	}
	return out
}

// String returns the selector used in config files, flags and URLs.
func (k Kind) String() string {
	switch k {
	case Enrolment:
		return "enrolment"
	case DemographicUpdate:
		return "demographic"
	case BiometricUpdate:
		return "biometric"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Label is the human readable series name.
func (k Kind) Label() string {
	switch k {
	case Enrolment:
		return "Enrolments"
	case DemographicUpdate:
		return "Demographic Updates"
	case BiometricUpdate:
		return "Biometric Updates"
	default:
		return k.String()
	}
}

// MarshalText implements encoding.TextMarshaler so kinds serialize as selectors.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseKind resolves a selector such as "enrolment", "demo" or "bio".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enrolment", "enrollment", "enr":
		return Enrolment, nil
	case "demographic", "demo", "demographic_update":
		return DemographicUpdate, nil
	case "biometric", "bio", "biometric_update":
		return BiometricUpdate, nil
	default:
		return 0, fmt.Errorf("%w: %q (use enrolment, demographic or biometric)", ErrUnknownKind, s)
	}
}
