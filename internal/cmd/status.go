package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/denniswebb/gatewire/internal/config"
	"github.com/denniswebb/gatewire/internal/iptables"
	"github.com/denniswebb/gatewire/internal/logging"
)

var (
	statusTable  string
	statusOutput string
	statusIPv6   bool
)

// statusFirewall is the read-only slice of the handle the status verb uses.
type statusFirewall interface {
	Protocol() iptables.Protocol
	Version() iptables.VersionInfo
	ListChains(ctx context.Context, table string) ([]string, error)
	List(ctx context.Context, table, chain string) ([]string, error)
}

type chainStatus struct {
	Name  string   `yaml:"name"`
	Rules []string `yaml:"rules,omitempty"`
}

type statusReport struct {
	Protocol string        `yaml:"protocol"`
	Variant  string        `yaml:"variant"`
	Version  string        `yaml:"version"`
	Banner   string        `yaml:"banner,omitempty"`
	Table    string        `yaml:"table"`
	Chains   []chainStatus `yaml:"chains"`
}

func buildStatus(ctx context.Context, fw statusFirewall, table string) (statusReport, error) {
	v := fw.Version()
	report := statusReport{
		Protocol: fw.Protocol().String(),
		Variant:  v.Variant.String(),
		Version:  fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch),
		Banner:   v.Banner,
		Table:    table,
	}

	chains, err := fw.ListChains(ctx, table)
	if err != nil {
		return statusReport{}, fmt.Errorf("list chains in table %s: %w", table, err)
	}

	for _, chain := range chains {
		lines, err := fw.List(ctx, table, chain)
		if err != nil {
			return statusReport{}, fmt.Errorf("list chain %s/%s: %w", table, chain, err)
		}
		var rules []string
		for _, line := range lines {
			if strings.HasPrefix(line, "-A ") {
				rules = append(rules, line)
			}
		}
		report.Chains = append(report.Chains, chainStatus{Name: chain, Rules: rules})
	}

	return report, nil
}

func renderStatus(w io.Writer, report statusReport, format string) error {
	switch format {
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("render status: %w", err)
		}
		_, err = w.Write(data)
		return err
	case "text":
		fmt.Fprintf(w, "protocol: %s\n", report.Protocol)
		fmt.Fprintf(w, "variant:  %s\n", report.Variant)
		fmt.Fprintf(w, "version:  %s\n", report.Version)
		fmt.Fprintf(w, "table:    %s\n", report.Table)
		for _, c := range report.Chains {
			fmt.Fprintf(w, "\nchain %s (%d rules)\n", c.Name, len(c.Rules))
			for _, r := range c.Rules {
				fmt.Fprintf(w, "  %s\n", r)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// StatusCmd represents the gatewire status subcommand.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the detected backend and per-chain rules",
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

		handle, err := newHandle(ctx, cfg, protocolFor(statusIPv6), nil, logger)
		if err != nil {
			return err
		}

		report, err := buildStatus(ctx, handle, statusTable)
		if err != nil {
			return err
		}

		return renderStatus(cmd.OutOrStdout(), report, statusOutput)
	},
}

func init() {
	StatusCmd.Flags().StringVar(&statusTable, "table", "filter", "Table to report")
	StatusCmd.Flags().StringVar(&statusOutput, "output", "text", "Output format (text, yaml)")
	StatusCmd.Flags().BoolVar(&statusIPv6, "ipv6", false, "Operate on the IPv6 rule store")
}
