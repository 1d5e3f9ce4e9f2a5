package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
	"github.com/KaramelBytes/uidpulse/internal/metrics"
	"github.com/KaramelBytes/uidpulse/internal/pipeline"
	"github.com/KaramelBytes/uidpulse/internal/report"
)

var (
	summaryLevel  string
	trendFreq     string
	forecastSteps int
)

const kindHelp = "kind is one of enrolment, demographic, biometric (or enr, demo, bio)"

// analyticsCommand builds a command that loads the datasets and passes the service to run.
func analyticsCommand(use, short string, args cobra.PositionalArgs, run func(cmd *cobra.Command, args []string, svc *pipeline.Service) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newService(cmd.Context(), metrics.New())
			if err != nil {
				return err
			}
			return run(cmd, args, svc)
		},
	}
}

func parseKindArg(args []string) (dataset.Kind, error) {
	return dataset.ParseKind(args[0])
}

var kpisCmd = analyticsCommand("kpis", "Show headline totals for the selected region", cobra.NoArgs,
	func(cmd *cobra.Command, _ []string, svc *pipeline.Service) error {
		k := svc.KPIs(region())
		return emit(cmd, k, report.KPITable(k))
	})

var summaryCmd = analyticsCommand("summary <kind>", "Total a dataset by state or district", cobra.ExactArgs(1),
	func(cmd *cobra.Command, args []string, svc *pipeline.Service) error {
		k, err := parseKindArg(args)
		if err != nil {
			return err
		}
		level, err := analytics.ParseLevel(summaryLevel)
		if err != nil {
			return err
		}
		s := svc.Summary(region(), k, level)
		return emit(cmd, s, report.SummaryTable(s))
	})

var trendCmd = analyticsCommand("trend <kind>", "Resample a dataset over time", cobra.ExactArgs(1),
	func(cmd *cobra.Command, args []string, svc *pipeline.Service) error {
		k, err := parseKindArg(args)
		if err != nil {
			return err
		}
		freq := svc.Engine().Config().Frequency
		if trendFreq != "" {
			if freq, err = analytics.ParseFrequency(trendFreq); err != nil {
				return err
			}
		}
		tr := svc.Trend(region(), k, freq)
		return emit(cmd, tr, report.TrendTable(tr))
	})

var ratiosCmd = analyticsCommand("ratios", "Rank states by update to enrolment ratio", cobra.NoArgs,
	func(cmd *cobra.Command, _ []string, svc *pipeline.Service) error {
		rs := svc.Ratios(region())
		return emit(cmd, rs, report.RatioTable(rs))
	})

var correlationCmd = analyticsCommand("correlation", "Correlate daily totals across datasets", cobra.NoArgs,
	func(cmd *cobra.Command, _ []string, svc *pipeline.Service) error {
		m := svc.Correlation(region())
		return emit(cmd, m, report.CorrelationTable(m))
	})

var outliersCmd = analyticsCommand("outliers <kind>", "Flag districts outside the IQR fences", cobra.ExactArgs(1),
	func(cmd *cobra.Command, args []string, svc *pipeline.Service) error {
		k, err := parseKindArg(args)
		if err != nil {
			return err
		}
		o := svc.Outliers(region(), k)
		if o.Status != analytics.StatusOK {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s outliers: %s\n", k.Label(), o.Status)
		}
		return emit(cmd, o, report.OutlierTable(o))
	})

var forecastCmd = analyticsCommand("forecast <kind>", "Project monthly totals with a linear trend", cobra.ExactArgs(1),
	func(cmd *cobra.Command, args []string, svc *pipeline.Service) error {
		k, err := parseKindArg(args)
		if err != nil {
			return err
		}
		periods := svc.Engine().Config().ForecastPeriods
		if cmd.Flags().Changed("periods") {
			if forecastSteps < 0 {
				return fmt.Errorf("--periods must be >= 0")
			}
			periods = forecastSteps
		}
		f := svc.Forecast(region(), k, periods)
		if f.Status != analytics.StatusOK {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s forecast: %s\n", k.Label(), f.Status)
		}
		return emit(cmd, f, report.ForecastTable(f))
	})

var recommendCmd = analyticsCommand("recommend", "List districts that exceed their load thresholds", cobra.NoArgs,
	func(cmd *cobra.Command, _ []string, svc *pipeline.Service) error {
		rs := svc.Recommendations(region())
		if len(rs) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "✓ No district exceeds its threshold")
		}
		return emit(cmd, rs, report.RecommendationTable(rs))
	})

var coverageCmd = analyticsCommand("coverage", "Show which datasets each state label appears in", cobra.NoArgs,
	func(cmd *cobra.Command, _ []string, svc *pipeline.Service) error {
		cs := svc.Coverage(region())
		return emit(cmd, cs, report.CoverageTable(cs))
	})

var cleaningCmd = analyticsCommand("cleaning", "Show what the normalizer repaired or dropped per dataset", cobra.NoArgs,
	func(cmd *cobra.Command, _ []string, svc *pipeline.Service) error {
		reps := svc.Snapshot().Reports
		return emit(cmd, reps, report.CleaningTable(reps))
	})

func init() {
	summaryCmd.Long = "Total a dataset by state or district; " + kindHelp + "."
	summaryCmd.Flags().StringVar(&summaryLevel, "level", "state", "grouping level: state or district")
	trendCmd.Long = "Resample a dataset to D, W, ME, QE or YE buckets with zero-filled gaps; " + kindHelp + "."
	trendCmd.Flags().StringVar(&trendFreq, "freq", "", "bucket frequency: D, W, ME, QE, YE (default resample_frequency)")
	outliersCmd.Long = "Flag districts whose load is outside Q1-1.5*IQR and Q3+1.5*IQR; " + kindHelp + "."
	forecastCmd.Long = "Fit a least-squares line to month-end totals and extend it; " + kindHelp + "."
	forecastCmd.Flags().IntVar(&forecastSteps, "periods", 0, "months to project (default forecast_periods)")

	for _, c := range []*cobra.Command{kpisCmd, summaryCmd, trendCmd, ratiosCmd, correlationCmd, outliersCmd, forecastCmd, recommendCmd, coverageCmd, cleaningCmd} {
		rootCmd.AddCommand(c)
	}
}
