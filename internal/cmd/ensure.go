package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/denniswebb/gatewire/internal/config"
	"github.com/denniswebb/gatewire/internal/enforce"
	"github.com/denniswebb/gatewire/internal/logging"
)

// EnsureCmd represents the gatewire ensure subcommand.
var EnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Converge the host on the declared ruleset once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

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

		handles, err := newHandles(ctx, cfg, nil, logger)
		if err != nil {
			return err
		}

		enf, err := enforce.New(enforce.Config{
			Firewalls: asFirewalls(handles),
			Ruleset:   cfg.Ruleset,
			Data:      templateData(cfg),
			Interval:  interval,
			Logger:    logger.With(slog.String("component", "ensure")),
		})
		if err != nil {
			return err
		}

		summary, err := enf.ReconcileOnce(ctx)
		if err != nil {
			return err
		}

		logger.Info("ruleset ensured",
			slog.Int("chains_created", summary.ChainsCreated),
			slog.Int("rules_added", summary.RulesAdded),
			slog.Int("policies_set", summary.PoliciesSet),
			slog.Int("skipped", summary.Skipped),
		)
		return nil
	},
}
