package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/report"
	"github.com/KaramelBytes/uidpulse/internal/utils"
)

// ManifestFile is written at the root of every export.
const ManifestFile = "manifest.json"

// exportAttempts is the number of tries per slice before it is recorded as failed.
const exportAttempts = 2

// SliceResult is the outcome of exporting one region.
type SliceResult struct {
	Region   string   `json:"region"`
	Dir      string   `json:"dir"`
	Files    []string `json:"files,omitempty"`
	Attempts int      `json:"attempts"`
	Error    string   `json:"error,omitempty"`
}

// Manifest describes an export run.
type Manifest struct {
	RunID     string        `json:"run_id"`
	Format    report.Format `json:"format"`
	CreatedAt time.Time     `json:"created_at"`
	Records   int           `json:"records"`
	Slices    []SliceResult `json:"slices"`
	Failed    int           `json:"failed"`
}

// Exporter writes one bundle per region slice in parallel.
type Exporter struct {
	svc     *Service
	workers int
	logger  *slog.Logger
	// write is swapped in tests to inject failures.
	write func(dir string, f report.Format, region string) ([]string, error)
}

// NewExporter returns an Exporter running at most workers slices at once.
func NewExporter(svc *Service, workers int) *Exporter {
	if workers <= 0 {
		workers = 1
	}
	e := &Exporter{svc: svc, workers: workers, logger: svc.logger.With(slog.String("component", "export"))}
	e.write = e.writeSlice
	return e
}

// Export writes the "All" slice plus each region (every state when regions is empty) under dir.
// A slice that fails twice is recorded in the manifest without stopping the others.
func (e *Exporter) Export(ctx context.Context, dir string, f report.Format, regions []string) (Manifest, error) {
	if f == report.FormatTable || f == "" {
		return Manifest{}, fmt.Errorf("%w: %q cannot be exported", report.ErrUnknownFormat, f)
	}
	if _, err := report.ParseFormat(string(f)); err != nil {
		return Manifest{}, err
	}
	if len(regions) == 0 {
		regions = e.svc.States()
	}
	slices := uniqueRegions(append([]string{dataset.AllRegions}, regions...))
	dirs := sliceDirs(slices)

	man := Manifest{
		RunID:     uuid.NewString(),
		Format:    f,
		CreatedAt: time.Now().UTC(),
		Records:   e.svc.Snapshot().Set.Len(),
		Slices:    make([]SliceResult, len(slices)),
	}
	log := e.logger.With(slog.String("run_id", man.RunID))
	log.Info("export started", slog.Int("slices", len(slices)), slog.String("format", string(f)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, region := range slices {
		g.Go(func() error {
			res := SliceResult{Region: region, Dir: dirs[i]}
			var err error
			for res.Attempts < exportAttempts {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				res.Attempts++
				res.Files, err = e.write(filepath.Join(dir, res.Dir), f, region)
				if err == nil {
					break
				}
				log.Warn("slice export failed", slog.String("region", region), slog.Int("attempt", res.Attempts), slog.String("error", err.Error()))
			}
			if err != nil {
				res.Error = err.Error()
			}
			e.svc.metrics.ExportSlice(err == nil)
			man.Slices[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return man, err
	}
	for _, s := range man.Slices {
		if s.Error != "" {
			man.Failed++
		}
	}
	data, err := utils.PrettyJSON(man)
	if err != nil {
		return man, err
	}
	if err := utils.SafeWriteFile(filepath.Join(dir, ManifestFile), data); err != nil {
		return man, fmt.Errorf("write manifest: %w", err)
	}
	log.Info("export finished", slog.Int("failed", man.Failed))
	return man, nil
}

func (e *Exporter) writeSlice(dir string, f report.Format, region string) ([]string, error) {
	var extra []report.Table
	if dataset.IsAllRegions(region) {
		extra = append(extra, report.CleaningTable(e.svc.Snapshot().Reports))
	}
	return report.WriteBundle(dir, f, e.svc.Bundle(region), extra...)
}

func uniqueRegions(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range in {
		key := regionKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// sliceDirs names one directory per region. Labels that flatten to the same
// name get a numeric suffix in input order.
func sliceDirs(regions []string) []string {
	out := make([]string, len(regions))
	used := map[string]bool{}
	for i, r := range regions {
		base := sliceDir(r)
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// sliceDir turns a region label into a directory name.
func sliceDir(region string) string {
	var b strings.Builder
	lastSep := false
	for _, r := range strings.ToLower(region) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSep = false
			continue
		}
		if !lastSep && b.Len() > 0 {
			b.WriteByte('_')
			lastSep = true
		}
	}
	s := strings.TrimSuffix(b.String(), "_")
	if s == "" {
		return "region"
	}
	return s
}
