package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/uidpulse/internal/metrics"
	"github.com/KaramelBytes/uidpulse/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analytics as a JSON API",
	Long:  "Load the datasets once and serve every result under /api plus Prometheus metrics on /metrics. POST /api/reload re-reads the data folders.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := metrics.New()
		svc, err := newService(ctx, m)
		if err != nil {
			return err
		}
		n, err := newNarrator(m)
		if err != nil {
			return err
		}
		addr := cfg.ListenAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		srv := server.New(svc, n, server.Options{
			DefaultRegion: cfg.SelectedRegion,
			Logger:        logger,
			Metrics:       m,
		})
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
	rootCmd.AddCommand(serveCmd)
}
