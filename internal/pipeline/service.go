package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/ingest"
	"github.com/KaramelBytes/uidpulse/internal/metrics"
)

// Options configures a Service.
type Options struct {
	// CacheTTL bounds how long a computed result is reused. Zero disables expiry.
	CacheTTL time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

// Service holds the latest snapshot and memoises results per region slice.
// Cache keys include the snapshot generation and the slice row count, and Reload flushes the cache.
type Service struct {
	src     ingest.Source
	engine  *analytics.Engine
	cache   *cache.Cache
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu   sync.RWMutex
	snap Snapshot
	// gen increments on every Reload so results computed from a replaced snapshot never match a key.
	gen uint64
}

// NewService returns a Service with no data loaded. Call Reload before use.
func NewService(src ingest.Source, engine *analytics.Engine, opt Options) *Service {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	ttl := opt.CacheTTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	cleanup := 2 * ttl
	if ttl == cache.NoExpiration {
		cleanup = 0
	}
	return &Service{
		src:     src,
		engine:  engine,
		cache:   cache.New(ttl, cleanup),
		logger:  opt.Logger.With(slog.String("component", "service")),
		metrics: opt.Metrics,
	}
}

// Reload replaces the snapshot from the source and invalidates cached results.
func (s *Service) Reload(ctx context.Context) error {
	snap, err := Load(ctx, s.src, s.logger, s.metrics)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snap = snap
	s.gen++
	s.mu.Unlock()
	s.cache.Flush()
	s.logger.Info("snapshot loaded", slog.Int("records", snap.Set.Len()))
	return nil
}

// Snapshot returns the current snapshot.
func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Engine returns the analytics engine.
func (s *Service) Engine() *analytics.Engine { return s.engine }

// Slice returns the records of one state, or everything for "All".
func (s *Service) Slice(region string) dataset.Set {
	return s.Snapshot().Set.FilterState(region)
}

// States lists the state labels of the current snapshot.
func (s *Service) States() []string { return s.Snapshot().Set.States() }

// CacheKey joins a prefix and params with ':'.
func CacheKey(prefix string, params ...any) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range params {
		b.WriteString(":")
		b.WriteString(fmt.Sprintf("%v", p))
	}
	return b.String()
}

func regionKey(region string) string {
	if dataset.IsAllRegions(region) {
		return dataset.AllRegions
	}
	return dataset.CanonicalLabel(region)
}

// current returns the region slice together with the generation it was cut from.
func (s *Service) current(region string) (dataset.Set, uint64) {
	s.mu.RLock()
	snap, gen := s.snap, s.gen
	s.mu.RUnlock()
	return snap.Set.FilterState(region), gen
}

func cached[T any](s *Service, op, region string, fn func(dataset.Set) T, params ...any) T {
	set, gen := s.current(region)
	key := CacheKey(op, append([]any{regionKey(region), set.Len(), gen}, params...)...)
	if v, ok := s.cache.Get(key); ok {
		if out, ok := v.(T); ok {
			s.metrics.CacheResult(true)
			return out
		}
	}
	s.metrics.CacheResult(false)
	done := s.metrics.Time(op)
	out := fn(set)
	done()
	s.cache.SetDefault(key, out)
	return out
}

// Bundle computes every result table for region.
func (s *Service) Bundle(region string) analytics.Bundle {
	return cached(s, "bundle", region, func(set dataset.Set) analytics.Bundle {
		return s.engine.Bundle(set, regionKey(region))
	})
}

// KPIs returns headline totals for region.
func (s *Service) KPIs(region string) analytics.KPIs {
	return cached(s, "kpis", region, s.engine.KPIs)
}

// Summary groups kind k of region by level.
func (s *Service) Summary(region string, k dataset.Kind, level analytics.Level) analytics.RegionSummary {
	return cached(s, "summary", region, func(set dataset.Set) analytics.RegionSummary {
		return s.engine.RegionSummary(set, k, level)
	}, k, level)
}

// Trend resamples kind k of region at freq.
func (s *Service) Trend(region string, k dataset.Kind, freq analytics.Frequency) analytics.Trend {
	return cached(s, "trend", region, func(set dataset.Set) analytics.Trend {
		return s.engine.TimeTrendAt(set, k, freq)
	}, k, freq)
}

// Ratios returns the update to enrolment ratio per state.
func (s *Service) Ratios(region string) []analytics.RegionRatio {
	return cached(s, "ratios", region, s.engine.UpdateRatios)
}

// Correlation returns the dataset correlation matrix.
func (s *Service) Correlation(region string) analytics.CorrelationMatrix {
	return cached(s, "correlation", region, s.engine.Correlation)
}

// Outliers flags districts of kind k.
func (s *Service) Outliers(region string, k dataset.Kind) analytics.OutlierReport {
	return cached(s, "outliers", region, func(set dataset.Set) analytics.OutlierReport {
		return s.engine.DistrictOutliers(set, k)
	}, k)
}

// Forecast projects kind k by periods months.
func (s *Service) Forecast(region string, k dataset.Kind, periods int) analytics.Forecast {
	return cached(s, "forecast", region, func(set dataset.Set) analytics.Forecast {
		return s.engine.ForecastHorizon(set, k, periods)
	}, k, periods)
}

// Recommendations evaluates the threshold rules.
func (s *Service) Recommendations(region string) []analytics.Recommendation {
	return cached(s, "recommendations", region, s.engine.Recommendations)
}

// Coverage reports state label coverage.
func (s *Service) Coverage(region string) []analytics.RegionCoverage {
	return cached(s, "coverage", region, s.engine.Coverage)
}
