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
	restoreTable string
	restoreInput string
	restoreIPv6  bool
)

// RestoreCmd represents the gatewire restore subcommand.
var RestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Apply a snapshot file to the live rule store",
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

		handle, err := newHandle(ctx, cfg, protocolFor(restoreIPv6), nil, logger)
		if err != nil {
			return err
		}

		if restoreTable != "" {
			err = handle.RestoreTable(ctx, restoreTable, restoreInput)
		} else {
			err = handle.RestoreAll(ctx, restoreInput)
		}
		if err != nil {
			return err
		}

		logger.Info("rule store restored",
			slog.String("path", restoreInput),
			slog.String("table", restoreTable),
			slog.String("protocol", handle.Protocol().String()),
		)
		return nil
	},
}

func init() {
	RestoreCmd.Flags().StringVar(&restoreTable, "table", "", "Limit the restore to one table")
	RestoreCmd.Flags().StringVar(&restoreInput, "input", "", "Snapshot file path")
	RestoreCmd.Flags().BoolVar(&restoreIPv6, "ipv6", false, "Operate on the IPv6 rule store")

	if err := RestoreCmd.MarkFlagRequired("input"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to mark input flag required: %v\n", err)
		os.Exit(1)
	}
}
