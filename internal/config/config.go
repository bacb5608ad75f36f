package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/denniswebb/gatewire/internal/ruleset"
)

// Config captures the runtime settings for gatewire commands.
type Config struct {
	LogLevel          string            `mapstructure:"log_level"`
	LogFormat         string            `mapstructure:"log_format"`
	MetricsAddr       string            `mapstructure:"metrics_addr"`
	LockPath          string            `mapstructure:"lock_path"`
	WaitSeconds       int               `mapstructure:"wait_seconds"`
	IPTablesPath      string            `mapstructure:"iptables_path"`
	IP6TablesPath     string            `mapstructure:"ip6tables_path"`
	IPv6              bool              `mapstructure:"ipv6"`
	ReconcileInterval string            `mapstructure:"reconcile_interval"`
	RulesetFile       string            `mapstructure:"ruleset_file"`
	Vars              map[string]string `mapstructure:"vars"`
	Ruleset           ruleset.Ruleset   `mapstructure:"ruleset"`
}

// rulesetFile is the standalone declaration document ruleset_file points at.
// It carries the same sections as the inline ruleset plus its own vars.
type rulesetFile struct {
	Vars     map[string]string `yaml:"vars"`
	Chains   []ruleset.Chain   `yaml:"chains"`
	Rules    []ruleset.Rule    `yaml:"rules"`
	Policies []ruleset.Policy  `yaml:"policies"`
}

// Load reads configuration values from viper into a Config instance. When
// ruleset_file is set, the file's declarations replace the inline ruleset and
// its vars override inline vars key by key.
func Load() (Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to load configuration: %w", err)
	}

	if cfg.RulesetFile != "" {
		if err := loadRulesetFile(&cfg); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func loadRulesetFile(cfg *Config) error {
	data, err := os.ReadFile(cfg.RulesetFile)
	if err != nil {
		return fmt.Errorf("read ruleset file: %w", err)
	}

	var rf rulesetFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("parse ruleset file %s: %w", cfg.RulesetFile, err)
	}

	cfg.Ruleset = ruleset.Ruleset{
		Chains:   rf.Chains,
		Rules:    rf.Rules,
		Policies: rf.Policies,
	}

	if len(rf.Vars) > 0 {
		if cfg.Vars == nil {
			cfg.Vars = make(map[string]string, len(rf.Vars))
		}
		for k, v := range rf.Vars {
			cfg.Vars[k] = v
		}
	}

	return nil
}
