package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/uidpulse/internal/metrics"
	"github.com/KaramelBytes/uidpulse/internal/pipeline"
	"github.com/KaramelBytes/uidpulse/internal/report"
)

var (
	exportDir    string
	exportStates []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the full analysis bundle for All and each state",
	Long: `Write the full analysis bundle for the All slice and each state (or the states
given with --states) under --out-dir, one folder per slice plus a manifest.json.
Slices run in parallel (export_workers); a failed slice is retried once and then
recorded in the manifest. --format defaults to csv here.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := report.FormatCSV
		if cmd.Flags().Changed("format") {
			var err error
			if f, err = outputFormat(); err != nil {
				return err
			}
		}
		svc, err := newService(cmd.Context(), metrics.New())
		if err != nil {
			return err
		}
		man, err := pipeline.NewExporter(svc, cfg.ExportWorkers).Export(cmd.Context(), exportDir, f, exportStates)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Exported %d slices to %s (run %s)\n", len(man.Slices)-man.Failed, exportDir, man.RunID)
		if man.Failed > 0 {
			for _, s := range man.Slices {
				if s.Error != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "⚠ %s: %s\n", s.Region, s.Error)
				}
			}
			return fmt.Errorf("%d of %d slices failed", man.Failed, len(man.Slices))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "out-dir", "uidpulse-export", "folder to write the export into")
	exportCmd.Flags().StringSliceVar(&exportStates, "states", nil, "states to export (default: every state)")
	rootCmd.AddCommand(exportCmd)
}
