package dataset

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Column names shared by every dataset.
const (
	ColDate     = "date"
	ColState    = "state"
	ColDistrict = "district"
	ColPincode  = "pincode"
)

// MissingLabel is the placeholder a missing state or district becomes after cleaning.
// It participates in grouping as its own category.
const MissingLabel = "Nan"

// AllRegions is the region selector meaning "no filter".
const AllRegions = "All"

// RawRow is one unparsed source row keyed by lower-cased header name.
type RawRow map[string]string

// RawBatch is an unordered batch of source rows for a single dataset kind.
type RawBatch struct {
	Kind    Kind
	Columns []string
	Rows    []RawRow
}

// HasColumn reports whether the batch header contains name.
func (b RawBatch) HasColumn(name string) bool {
	for _, c := range b.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Calendar holds fields derived from a record date by the feature augmenter.
type Calendar struct {
	Year      int        `json:"year"`
	Month     time.Month `json:"month"`
	MonthName string     `json:"month_name"`
	// YearMonth is the sortable YYYY-MM bucket label.
	YearMonth string `json:"year_month"`
}

// Record is one cleaned row. Values are indexed like Kind.Measures().
type Record struct {
	Kind     Kind      `json:"kind"`
	Date     time.Time `json:"date"`
	State    string    `json:"state"`
	District string    `json:"district"`
	Pincode  string    `json:"pincode,omitempty"`
	Values   []int64   `json:"values"`
	Calendar
}

// Total sums the record's measures.
func (r Record) Total() int64 {
	var t int64
	for _, v := range r.Values {
		t += v
	}
	return t
}

// CanonicalLabel trims and title-cases a categorical label. Empty input maps to MissingLabel.
// A cases.Caser is stateful, so callers on hot paths should reuse one per goroutine via NewLabeler.
func CanonicalLabel(s string) string {
	return NewLabeler().Label(s)
}

// Labeler canonicalizes state and district text. Not safe for concurrent use.
type Labeler struct {
	caser cases.Caser
}

// NewLabeler returns a Labeler for locale-independent title casing.
func NewLabeler() *Labeler {
	return &Labeler{caser: cases.Title(language.Und)}
}

// Label returns the canonical form of s.
func (l *Labeler) Label(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return MissingLabel
	}
	return upperAfterApostrophe(strings.TrimSpace(l.caser.String(s)))
}

// upperAfterApostrophe capitalizes a letter that follows an apostrophe, so "o'brien"
// becomes "O'Brien". cases.Title treats the apostrophe as part of the word.
func upperAfterApostrophe(s string) string {
	if !strings.ContainsAny(s, "'’") {
		return s
	}
	rs := []rune(s)
	for i := 1; i < len(rs); i++ {
		if (rs[i-1] == '\'' || rs[i-1] == '’') && unicode.IsLower(rs[i]) {
			rs[i] = unicode.ToUpper(rs[i])
		}
	}
	return string(rs)
}

// Set is the cleaned record collection of all three datasets.
type Set struct {
	Enrolment   []Record `json:"enrolment"`
	Demographic []Record `json:"demographic"`
	Biometric   []Record `json:"biometric"`
}

// Of returns the records of the given kind. Unknown kinds yield nil.
func (s Set) Of(k Kind) []Record {
	switch k {
	case Enrolment:
		return s.Enrolment
	case DemographicUpdate:
		return s.Demographic
	case BiometricUpdate:
		return s.Biometric
	default:
		return nil
	}
}

// With returns a copy of s with the records of kind k replaced.
func (s Set) With(k Kind, recs []Record) Set {
	switch k {
	case Enrolment:
		s.Enrolment = recs
	case DemographicUpdate:
		s.Demographic = recs
	case BiometricUpdate:
		s.Biometric = recs
	}
	return s
}

// Len counts records across all kinds.
func (s Set) Len() int { return len(s.Enrolment) + len(s.Demographic) + len(s.Biometric) }

// States returns the sorted distinct state labels across all kinds.
func (s Set) States() []string {
	seen := map[string]struct{}{}
	for _, k := range Kinds() {
		for _, r := range s.Of(k) {
			seen[r.State] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// IsAllRegions reports whether region means "no filter".
func IsAllRegions(region string) bool {
	region = strings.TrimSpace(region)
	return region == "" || strings.EqualFold(region, AllRegions)
}

// FilterState keeps only records whose state equals the canonical form of region.
// The input slices are not modified.
func (s Set) FilterState(region string) Set {
	if IsAllRegions(region) {
		return s
	}
	want := CanonicalLabel(region)
	var out Set
	for _, k := range Kinds() {
		var kept []Record
		for _, r := range s.Of(k) {
			if r.State == want {
				kept = append(kept, r)
			}
		}
		out = out.With(k, kept)
	}
	return out
}
