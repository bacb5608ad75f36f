package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/denniswebb/gatewire/internal/config"
	"github.com/denniswebb/gatewire/internal/enforce"
	"github.com/denniswebb/gatewire/internal/iptables"
	"github.com/denniswebb/gatewire/internal/logging"
	"github.com/denniswebb/gatewire/internal/metrics"
)

// telemetryHandler pushes reconcile outcomes into the metrics registry and
// the readiness checker.
type telemetryHandler struct {
	metrics *metrics.Metrics
	health  *metrics.HealthChecker
}

func (h *telemetryHandler) OnReconcile(ctx context.Context, summary enforce.Summary, err error) {
	h.metrics.ObserveReconcile(err)
	h.health.SetConverged(err == nil)
}

// GuardCmd represents the gatewire guard subcommand.
var GuardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Enforce the declared ruleset continuously and serve telemetry",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.GetLogger()
		if logger == nil {
			logger = slog.Default()
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		interval, err := reconcileInterval(cfg)
		if err != nil {
			return err
		}

		collector := metrics.NewMetrics()
		health := metrics.NewHealthChecker(logger)
		exec := collector.InstrumentExecutor(iptables.NewExecutor())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		handles, err := newHandles(ctx, cfg, exec, logger)
		if err != nil {
			return err
		}
		health.SetBinariesVerified()

		guardLogger := logger.With(slog.String("component", "guard"))

		enf, err := enforce.New(enforce.Config{
			Firewalls: asFirewalls(handles),
			Ruleset:   cfg.Ruleset,
			Data:      templateData(cfg),
			Interval:  interval,
			Logger:    guardLogger,
			Handler:   &telemetryHandler{metrics: collector, health: health},
		})
		if err != nil {
			return err
		}
		collector.SetManagedCounts(len(enf.Ruleset().Chains), len(enf.Ruleset().Rules))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		done := make(chan struct{})
		go func() {
			defer close(done)
			enf.Run(ctx)
		}()

		serveErr := make(chan error, 1)
		go func() {
			serveErr <- metrics.Serve(ctx, cfg.MetricsAddr, collector, health, logger)
		}()

		guardLogger.Info("guard started",
			slog.String("reconcile_interval", interval.String()),
			slog.String("metrics_addr", cfg.MetricsAddr),
			slog.Bool("ipv6", cfg.IPv6),
		)

		var telemetryErr error
		select {
		case sig := <-sigCh:
			guardLogger.Info("shutdown signal received", slog.String("signal", sig.String()))
		case telemetryErr = <-serveErr:
		}

		cancel()
		<-done

		if telemetryErr == nil {
			if err := <-serveErr; err != nil {
				guardLogger.Warn("telemetry server shutdown failed", slog.Any("error", err))
			}
		}

		guardLogger.Info("guard shutdown complete")
		return telemetryErr
	},
}
