package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/uidpulse/internal/analytics"
	cfgpkg "github.com/KaramelBytes/uidpulse/internal/config"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/ingest"
	"github.com/KaramelBytes/uidpulse/internal/logging"
	"github.com/KaramelBytes/uidpulse/internal/metrics"
	"github.com/KaramelBytes/uidpulse/internal/pipeline"
	"github.com/KaramelBytes/uidpulse/internal/report"
)

var (
	cfgFile string
	debug   bool
	// Overrides applied on top of the loaded config when set.
	flagDataDir          string
	flagRegion           string
	flagFormat           string
	flagOut              string
	flagLogFormat        string
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:           "uidpulse",
	Short:         "uidpulse: Aadhaar enrolment and update analytics",
	Long:          `uidpulse loads the Aadhaar enrolment, demographic update and biometric update extracts, cleans them, and produces descriptive, diagnostic, predictive and prescriptive results as tables, exports or a JSON API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.uidpulse/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&flagDataDir, "data-dir", "", "root folder holding the three dataset folders (overrides config)")
	pf.StringVarP(&flagRegion, "region", "r", "", "state to analyse, or All (overrides selected_region)")
	pf.StringVarP(&flagFormat, "format", "f", "table", "output format: table, json, csv, markdown, xlsx")
	pf.StringVarP(&flagOut, "out", "o", "", "write output to this file instead of stdout")
	pf.StringVar(&flagLogFormat, "log-format", "", "log format: text or json (overrides config)")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "AI HTTP client timeout in seconds (overrides config)")
	pf.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max AI retry attempts on 429/5xx (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: config commands can still repair the file.
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		c = cfgpkg.Default()
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if f.Changed("region") && flagRegion != "" {
		cfg.SelectedRegion = flagRegion
	}
	if f.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
}

// validConfig returns the loaded config after validation.
func validConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		loadConfig()
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newService loads the datasets under data_dir into a ready Service.
func newService(ctx context.Context, m *metrics.Metrics) (*pipeline.Service, error) {
	c, err := validConfig()
	if err != nil {
		return nil, err
	}
	src := ingest.NewDirSource(c.DataDir, logger)
	src.Dirs = c.Dirs()
	src.OnFile = func(k dataset.Kind, path string, rows int, err error) {
		m.ObserveFile(k.String(), err)
	}
	svc := pipeline.NewService(src, analytics.New(c.Analytics()), pipeline.Options{
		CacheTTL: c.CacheTTL(),
		Logger:   logger,
		Metrics:  m,
	})
	if err := svc.Reload(ctx); err != nil {
		return nil, fmt.Errorf("load datasets from %s: %w", c.DataDir, err)
	}
	if svc.Snapshot().Set.Len() == 0 {
		fmt.Fprintf(os.Stderr, "⚠ Warning: no records found under %s\n", c.DataDir)
	}
	return svc, nil
}

func outputFormat() (report.Format, error) {
	return report.ParseFormat(flagFormat)
}

// emit writes v as JSON, or tables in any other format, to stdout or --out.
func emit(cmd *cobra.Command, v any, tables ...report.Table) error {
	f, err := outputFormat()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if flagOut != "" {
		file, err := os.Create(flagOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	} else if f == report.FormatXLSX {
		return fmt.Errorf("xlsx output needs --out")
	}
	if err := write(w, f, v, tables); err != nil {
		return err
	}
	if flagOut != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", flagOut)
	}
	return nil
}

func write(w io.Writer, f report.Format, v any, tables []report.Table) error {
	if f == report.FormatJSON {
		return report.WriteJSON(w, v)
	}
	return report.Write(w, f, tables...)
}

// region returns the effective region selector.
func region() string {
	if cfg == nil || cfg.SelectedRegion == "" {
		return dataset.AllRegions
	}
	return cfg.SelectedRegion
}

