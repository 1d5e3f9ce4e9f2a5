// Package analytics computes descriptive, diagnostic, predictive and prescriptive results
// over cleaned dataset records. Every operation is a pure function of its input and the
// engine configuration; missing data degrades to an empty result instead of an error.
package analytics

import (
	"fmt"
	"strings"
)

// Status tells an empty result caused by missing input apart from a computed one.
type Status string

const (
	StatusOK           Status = "ok"
	StatusNoData       Status = "no_data"
	StatusInsufficient Status = "insufficient"
)

// LoadBasis selects how a district's average load is computed.
type LoadBasis string

const (
	// LoadPerMonth averages the district's monthly summed totals over months with records.
	LoadPerMonth LoadBasis = "month"
	// LoadPerRecord averages raw record totals.
	LoadPerRecord LoadBasis = "record"
)

// ParseLoadBasis accepts "month" or "record". Empty input means month.
func ParseLoadBasis(s string) (LoadBasis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "month", "monthly":
		return LoadPerMonth, nil
	case "record", "row":
		return LoadPerRecord, nil
	default:
		return "", fmt.Errorf("unknown load basis %q (use month or record)", s)
	}
}

// Config carries the tunables of every engine operation.
type Config struct {
	ForecastPeriods    int
	Frequency          Frequency
	EnrolmentThreshold float64
	BiometricThreshold float64
	LoadBasis          LoadBasis
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ForecastPeriods:    3,
		Frequency:          FreqMonth,
		EnrolmentThreshold: 1000,
		BiometricThreshold: 500,
		LoadBasis:          LoadPerMonth,
	}
}

// Engine runs analytics with a fixed configuration. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// New returns an Engine. Zero or invalid fields fall back to defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.ForecastPeriods < 0 {
		cfg.ForecastPeriods = def.ForecastPeriods
	}
	if !cfg.Frequency.Valid() {
		cfg.Frequency = def.Frequency
	}
	if cfg.LoadBasis != LoadPerRecord {
		cfg.LoadBasis = LoadPerMonth
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }
