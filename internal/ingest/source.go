package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

// ErrNoFiles is returned by Discover when a folder holds no readable tabular files.
var ErrNoFiles = errors.New("no tabular files found")

// Source supplies an unordered raw batch per dataset kind.
type Source interface {
	Load(ctx context.Context, k dataset.Kind) (dataset.RawBatch, error)
}

// DefaultDirs are the folder names used by the public UIDAI API extracts.
func DefaultDirs() map[dataset.Kind]string {
	return map[dataset.Kind]string{
		dataset.Enrolment:         "api_data_aadhar_enrolment",
		dataset.DemographicUpdate: "api_data_aadhar_demographic",
		dataset.BiometricUpdate:   "api_data_aadhar_biometric",
	}
}

// DirSource reads every CSV/TSV/XLSX file found recursively under Root/Dirs[kind].
type DirSource struct {
	Root   string
	Dirs   map[dataset.Kind]string
	Logger *slog.Logger
	// OnFile is called after each file attempt; err is nil on success.
	OnFile func(k dataset.Kind, path string, rows int, err error)
}

// NewDirSource returns a DirSource with default folder names.
func NewDirSource(root string, logger *slog.Logger) *DirSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirSource{Root: root, Dirs: DefaultDirs(), Logger: logger}
}

// Dir returns the folder scanned for kind k.
func (s *DirSource) Dir(k dataset.Kind) string {
	name := s.Dirs[k]
	if name == "" {
		name = DefaultDirs()[k]
	}
	return filepath.Join(s.Root, name)
}

// Load concatenates all files for kind k. A missing or empty folder yields an empty batch.
// Files that fail to parse are logged and skipped.
func (s *DirSource) Load(ctx context.Context, k dataset.Kind) (dataset.RawBatch, error) {
	if !k.Valid() {
		return dataset.RawBatch{}, fmt.Errorf("%w: %d", dataset.ErrUnknownKind, int(k))
	}
	log := s.logger().With(slog.String("component", "ingest"), slog.String("kind", k.String()))
	batch := dataset.RawBatch{Kind: k}
	dir := s.Dir(k)
	files, err := Discover(dir)
	if err != nil {
		if errors.Is(err, ErrNoFiles) || errors.Is(err, fs.ErrNotExist) {
			log.Warn("no source files", slog.String("dir", dir))
			return batch, nil
		}
		return batch, err
	}
	log.Info("reading source files", slog.String("dir", dir), slog.Int("files", len(files)))

	seen := map[string]bool{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		t, err := ReadFile(path, k)
		if s.OnFile != nil {
			s.OnFile(k, path, len(t.Rows), err)
		}
		if err != nil {
			log.Warn("skipping unreadable file", slog.String("file", path), slog.String("error", err.Error()))
			continue
		}
		for _, c := range t.Columns {
			if c != "" && !seen[c] {
				seen[c] = true
				batch.Columns = append(batch.Columns, c)
			}
		}
		batch.Rows = append(batch.Rows, t.Rows...)
	}
	log.Info("loaded rows", slog.Int("rows", len(batch.Rows)))
	return batch, nil
}

func (s *DirSource) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Discover lists tabular files under dir in lexical order.
func Discover(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv", ".tsv", ".xlsx":
			if !strings.HasPrefix(d.Name(), "~$") {
				files = append(files, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, dir)
	}
	sort.Strings(files)
	return files, nil
}

// MemorySource serves fixed batches. Kinds without a batch load as empty.
type MemorySource map[dataset.Kind]dataset.RawBatch

// Load implements Source.
func (m MemorySource) Load(ctx context.Context, k dataset.Kind) (dataset.RawBatch, error) {
	if err := ctx.Err(); err != nil {
		return dataset.RawBatch{}, err
	}
	if !k.Valid() {
		return dataset.RawBatch{}, fmt.Errorf("%w: %d", dataset.ErrUnknownKind, int(k))
	}
	b, ok := m[k]
	if !ok {
		return dataset.RawBatch{Kind: k}, nil
	}
	b.Kind = k
	return b, nil
}
