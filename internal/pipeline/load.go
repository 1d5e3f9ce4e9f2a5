// Package pipeline wires the row source, cleaning and analytics into a memoised service
// and a parallel exporter.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/uidpulse/internal/clean"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/ingest"
	"github.com/KaramelBytes/uidpulse/internal/metrics"
)

// Snapshot is one cleaned load of all datasets.
type Snapshot struct {
	Set      dataset.Set    `json:"-"`
	Reports  []clean.Report `json:"reports"`
	LoadedAt time.Time      `json:"loaded_at"`
}

// Load reads and cleans every dataset kind concurrently.
func Load(ctx context.Context, src ingest.Source, logger *slog.Logger, m *metrics.Metrics) (Snapshot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With(slog.String("component", "pipeline"))
	defer m.Time("load")()

	kinds := dataset.Kinds()
	recs := make([][]dataset.Record, len(kinds))
	reps := make([]clean.Report, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range kinds {
		g.Go(func() error {
			batch, err := src.Load(gctx, k)
			if err != nil {
				return fmt.Errorf("load %s: %w", k, err)
			}
			batch.Kind = k
			recs[i], reps[i] = clean.Batch(batch)
			m.ObserveCleaning(reps[i])
			log.Info("cleaned dataset", slog.Any("report", reps[i]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	for i, k := range kinds {
		snap.Set = snap.Set.With(k, recs[i])
	}
	snap.Reports = reps
	snap.LoadedAt = time.Now().UTC()
	return snap, nil
}
