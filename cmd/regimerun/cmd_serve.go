package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpiface "github.com/sawpanic/regimerun/internal/interfaces/http"
	"github.com/sawpanic/regimerun/internal/metrics"
	"github.com/sawpanic/regimerun/internal/policy"
)

func newServeCmd() *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only API and run scheduled detection cycles",
		Long: `Starts the HTTP server (snapshot, history, risk, health, metrics,
websocket stream) and runs a detection cycle on the configured interval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := metrics.NewRegistry()
			a, err := newApp(ctx, flagConfig, reg)
			if err != nil {
				return err
			}
			defer a.close()

			tracker := httpiface.NewTracker()
			hub := httpiface.NewHub()

			serverCfg := httpiface.DefaultServerConfig()
			serverCfg.Addr = a.cfg.Server.Addr
			serverCfg.ReadTimeout = a.cfg.Server.ReadTimeout.Std()
			serverCfg.WriteTimeout = a.cfg.Server.WriteTimeout.Std()

			var history httpiface.HistorySource
			if a.repo != nil {
				history = a.repo
			}

			server, err := httpiface.NewServer(serverCfg, tracker, hub, policy.DefaultRiskConfig(), history, reg)
			if err != nil {
				return err
			}

			serverErr := make(chan error, 1)
			go func() { serverErr <- server.Start() }()

			cycle := func() {
				cycleCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
				defer cancel()
				snap, err := a.runCycle(cycleCtx)
				if err != nil {
					log.Error().Err(err).Msg("Scheduled cycle failed")
					return
				}
				tracker.Set(snap)
				hub.Broadcast(snap)
			}

			if runOnStart {
				cycle()
			}

			interval := a.cfg.Server.CycleInterval.Std()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			log.Info().Dur("interval", interval).Msg("Cycle scheduler started")

			for {
				select {
				case <-ticker.C:
					cycle()
				case err := <-serverErr:
					return err
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Std())
					defer cancel()
					return server.Shutdown(shutdownCtx)
				}
			}
		},
	}

	cmd.Flags().BoolVar(&runOnStart, "run-on-start", true, "Run a detection cycle immediately on startup")
	return cmd
}
