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
	saveTable  string
	saveOutput string
	saveIPv6   bool
)

// SaveCmd represents the gatewire save subcommand.
var SaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Snapshot the live rule store to a file",
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

		handle, err := newHandle(ctx, cfg, protocolFor(saveIPv6), nil, logger)
		if err != nil {
			return err
		}

		if saveTable != "" {
			err = handle.SaveTable(ctx, saveTable, saveOutput)
		} else {
			err = handle.SaveAll(ctx, saveOutput)
		}
		if err != nil {
			return err
		}

		logger.Info("rule store saved",
			slog.String("path", saveOutput),
			slog.String("table", saveTable),
			slog.String("protocol", handle.Protocol().String()),
		)
		return nil
	},
}

func init() {
	SaveCmd.Flags().StringVar(&saveTable, "table", "", "Limit the snapshot to one table")
	SaveCmd.Flags().StringVar(&saveOutput, "output", "", "Snapshot file path")
	SaveCmd.Flags().BoolVar(&saveIPv6, "ipv6", false, "Operate on the IPv6 rule store")

	if err := SaveCmd.MarkFlagRequired("output"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to mark output flag required: %v\n", err)
		os.Exit(1)
	}
}
