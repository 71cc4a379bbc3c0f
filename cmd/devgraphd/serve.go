package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/devgraph/devgraph/internal/devserver"
	"github.com/devgraph/devgraph/internal/hmr"
	"github.com/devgraph/devgraph/internal/ui/dashboard"
)

func newServeCmd() *cobra.Command {
	var useUI bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dev server: watch files, propagate HMR, pre-bundle dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if useUI {
				flagQuietLog = true
				setupLogging()
			}
			return runServe(useUI)
		},
	}

	cmd.Flags().BoolVar(&useUI, "ui", false, "show the terminal telemetry dashboard")
	return cmd
}

func runServe(useUI bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	channel := hmr.NewLocalChannel()
	srv := devserver.New(cfg, fsResolver{root: cfg.Root}, passthroughBundler{}, []hmr.Channel{channel}, slog.Default())

	if cfg.Output.MetricsAddr != "" {
		go serveMetrics(cfg.Output.MetricsAddr)
	}

	var prog *dashboard.Program
	if useUI {
		prog = dashboard.New()
		srv.AttachDashboard(prog)
	}

	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Close()

	if prog != nil {
		return prog.Run()
	}

	select {}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server stopped", "error", err)
	}
}
