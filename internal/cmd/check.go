package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/denniswebb/gatewire/internal/config"
	"github.com/denniswebb/gatewire/internal/logging"
)

var (
	checkTable string
	checkChain string
	checkRule  string
	checkIPv6  bool
)

// checkExitAbsent is the exit code for a rule that is not present. Scripts
// can tell absence (3) from operational failure (1).
const checkExitAbsent = 3

// CheckCmd represents the gatewire check subcommand.
var CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the live rule store for one rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger := logging.GetLogger()
		if logger == nil {
			logger = slog.Default()
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		handle, err := newHandle(ctx, cfg, protocolFor(checkIPv6), nil, logger)
		if err != nil {
			return err
		}

		present, err := handle.Exists(ctx, checkTable, checkChain, checkRule)
		if err != nil {
			return err
		}

		if !present {
			logger.Info("rule absent",
				slog.String("table", checkTable),
				slog.String("chain", checkChain),
				slog.String("rule", checkRule),
			)
			cancel()
			os.Exit(checkExitAbsent)
		}

		logger.Info("rule present",
			slog.String("table", checkTable),
			slog.String("chain", checkChain),
			slog.String("rule", checkRule),
		)
		return nil
	},
}

func init() {
	CheckCmd.Flags().StringVar(&checkTable, "table", "filter", "Table to probe")
	CheckCmd.Flags().StringVar(&checkChain, "chain", "", "Chain to probe")
	CheckCmd.Flags().StringVar(&checkRule, "rule", "", "Rule specification to probe for")
	CheckCmd.Flags().BoolVar(&checkIPv6, "ipv6", false, "Operate on the IPv6 rule store")

	for _, name := range []string{"chain", "rule"} {
		if err := CheckCmd.MarkFlagRequired(name); err != nil {
			fmt.Fprintf(os.Stderr, "failed to mark %s flag required: %v\n", name, err)
			os.Exit(1)
		}
	}
}
