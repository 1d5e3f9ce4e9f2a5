package analytics

import (
	"fmt"
	"strings"
	"time"
)

// Frequency is a resampling bucket. Buckets are labelled by their period-end date.
type Frequency string

const (
	FreqDay     Frequency = "D"
	FreqWeek    Frequency = "W" // weeks ending Sunday
	FreqMonth   Frequency = "ME"
	FreqQuarter Frequency = "QE"
	FreqYear    Frequency = "YE"
)

// Frequencies lists supported frequencies.
func Frequencies() []Frequency {
	return []Frequency{FreqDay, FreqWeek, FreqMonth, FreqQuarter, FreqYear}
}

// Valid reports whether f is supported.
func (f Frequency) Valid() bool {
	for _, x := range Frequencies() {
		if f == x {
			return true
		}
	}
	return false
}

// ParseFrequency accepts the bucket codes plus a few long names. Empty input means month end.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ME", "M", "MONTH", "MONTHLY":
		return FreqMonth, nil
	case "D", "DAY", "DAILY":
		return FreqDay, nil
	case "W", "W-SUN", "WEEK", "WEEKLY":
		return FreqWeek, nil
	case "QE", "Q", "QUARTER", "QUARTERLY":
		return FreqQuarter, nil
	case "YE", "Y", "A", "YEAR", "YEARLY":
		return FreqYear, nil
	default:
		return "", fmt.Errorf("unknown frequency %q (use D, W, ME, QE or YE)", s)
	}
}

// BucketEnd returns the period-end date of the bucket containing t, at midnight UTC.
func (f Frequency) BucketEnd(t time.Time) time.Time {
	y, m, d := t.Date()
	switch f {
	case FreqDay:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	case FreqWeek:
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, (7-int(day.Weekday()))%7)
	case FreqQuarter:
		qm := ((int(m)-1)/3 + 1) * 3
		return time.Date(y, time.Month(qm)+1, 0, 0, 0, 0, 0, time.UTC)
	case FreqYear:
		return time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
	}
}

// Next returns the bucket end following end, which must itself be a bucket end.
func (f Frequency) Next(end time.Time) time.Time {
	y, m, _ := end.Date()
	switch f {
	case FreqDay:
		return end.AddDate(0, 0, 1)
	case FreqWeek:
		return end.AddDate(0, 0, 7)
	case FreqQuarter:
		return time.Date(y, m+4, 0, 0, 0, 0, 0, time.UTC)
	case FreqYear:
		return time.Date(y+1, time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m+2, 0, 0, 0, 0, 0, time.UTC)
	}
}
