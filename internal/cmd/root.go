package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/denniswebb/gatewire/internal/iptables"
	"github.com/denniswebb/gatewire/internal/logging"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "gatewire",
	Short: "Declarative firewall rule manager for hosts",
	Long: `gatewire programs the host packet filter by driving the iptables family of
binaries: declare chains, rules, and policies once, and gatewire keeps the live
rule store converged on them. It snapshots and restores rule state, probes for
individual rules, and reports what the host is running.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		viper.SetEnvPrefix("GATEWIRE")
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()

		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
			viper.AddConfigPath("/etc/gatewire")
			viper.AddConfigPath(".")
			if err := viper.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return fmt.Errorf("failed to read config file: %w", err)
				}
			}
		}

		logging.InitLogger(viper.GetString("log_level"), viper.GetString("log_format"), "gatewire")
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	for key, flag := range map[string]string{
		"log_level":  "log-level",
		"log_format": "log-format",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to bind %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	viper.SetDefault("metrics_addr", ":9090")
	viper.SetDefault("lock_path", iptables.DefaultLockPath)
	viper.SetDefault("wait_seconds", 5)
	viper.SetDefault("reconcile_interval", "30s")

	rootCmd.AddCommand(EnsureCmd)
	rootCmd.AddCommand(GuardCmd)
	rootCmd.AddCommand(SaveCmd)
	rootCmd.AddCommand(RestoreCmd)
	rootCmd.AddCommand(CheckCmd)
	rootCmd.AddCommand(StatusCmd)
}
