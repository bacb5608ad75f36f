package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/denniswebb/gatewire/internal/iptables"
	"github.com/denniswebb/gatewire/internal/ruleset"
)

// Firewall is the slice of the rule store the enforcer drives. It is
// satisfied by *iptables.IPTables.
type Firewall interface {
	Protocol() iptables.Protocol
	ChainExists(ctx context.Context, table, chain string) (bool, error)
	NewChain(ctx context.Context, table, chain string) error
	List(ctx context.Context, table, chain string) ([]string, error)
	Exists(ctx context.Context, table, chain, spec string) (bool, error)
	Append(ctx context.Context, table, chain, spec string) error
	Insert(ctx context.Context, table, chain string, position int, spec string) error
	ChangePolicy(ctx context.Context, table, chain, policy string) error
}

// ResultHandler reacts to completed reconcile passes.
type ResultHandler interface {
	OnReconcile(ctx context.Context, summary Summary, err error)
}

// Summary counts what one reconcile pass did across all firewalls.
type Summary struct {
	ChainsCreated int
	RulesAdded    int
	PoliciesSet   int
	Skipped       int
}

// Mutated reports whether the pass changed anything in the rule store.
func (s Summary) Mutated() bool {
	return s.ChainsCreated+s.RulesAdded+s.PoliciesSet > 0
}

// Config holds the dependencies and settings for the Enforcer.
type Config struct {
	Firewalls []Firewall
	Ruleset   ruleset.Ruleset
	Data      ruleset.TemplateData
	Interval  time.Duration
	Logger    *slog.Logger
	Handler   ResultHandler
}

// Enforcer drives the declared ruleset into one or more firewall handles
// and keeps it converged.
type Enforcer struct {
	cfg    Config
	set    ruleset.Ruleset
	logger *slog.Logger
}

// New validates the configuration, expands template directives, and returns
// an Enforcer ready to reconcile.
func New(cfg Config) (*Enforcer, error) {
	if len(cfg.Firewalls) == 0 {
		return nil, fmt.Errorf("at least one firewall handle is required")
	}
	for _, fw := range cfg.Firewalls {
		if fw == nil {
			return nil, fmt.Errorf("firewall handle is nil")
		}
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("reconcile interval must be positive")
	}

	// Render copies the declared set, so the caller's slices stay untouched.
	set, err := cfg.Ruleset.Render(cfg.Data)
	if err != nil {
		return nil, err
	}
	set.Normalize()
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ruleset: %w", err)
	}
	if len(set.Chains) == 0 && len(set.Rules) == 0 && len(set.Policies) == 0 {
		return nil, fmt.Errorf("ruleset declares nothing to enforce")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Enforcer{
		cfg:    cfg,
		set:    set,
		logger: logger,
	}, nil
}

// Ruleset returns the expanded set the enforcer converges on.
func (e *Enforcer) Ruleset() ruleset.Ruleset {
	return e.set
}

// Run reconciles immediately and then on every interval tick until the
// context is canceled.
func (e *Enforcer) Run(ctx context.Context) {
	e.logger.Info("starting enforcement loop",
		slog.String("interval", e.cfg.Interval.String()),
		slog.Int("firewalls", len(e.cfg.Firewalls)),
	)

	ticker := time.NewTicker(e.cfg.Interval)
	defer func() {
		ticker.Stop()
		e.logger.Info("stopping enforcement loop")
	}()

	e.enforceOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.enforceOnce(ctx)
		}
	}
}

func (e *Enforcer) enforceOnce(ctx context.Context) {
	summary, err := e.ReconcileOnce(ctx)

	switch {
	case err != nil:
		e.logger.Warn("reconcile pass failed",
			slog.Any("error", err),
			slog.Int("chains_created", summary.ChainsCreated),
			slog.Int("rules_added", summary.RulesAdded),
		)
	case summary.Mutated():
		e.logger.Info("ruleset converged",
			slog.Int("chains_created", summary.ChainsCreated),
			slog.Int("rules_added", summary.RulesAdded),
			slog.Int("policies_set", summary.PoliciesSet),
			slog.Int("skipped", summary.Skipped),
		)
	default:
		e.logger.Debug("ruleset already satisfied",
			slog.Int("skipped", summary.Skipped),
		)
	}

	if e.cfg.Handler != nil {
		e.cfg.Handler.OnReconcile(ctx, summary, err)
	}
}

// ReconcileOnce walks the declared set against every firewall handle:
// chains first, then rules in declaration order, then built-in policies.
// It stops at the first failure and reports what was done up to it.
func (e *Enforcer) ReconcileOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	for _, fw := range e.cfg.Firewalls {
		if err := e.ensureChains(ctx, fw, &summary); err != nil {
			return summary, err
		}
		if err := e.ensureRules(ctx, fw, &summary); err != nil {
			return summary, err
		}
		if err := e.ensurePolicies(ctx, fw, &summary); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

func (e *Enforcer) ensureChains(ctx context.Context, fw Firewall, summary *Summary) error {
	proto := fw.Protocol()
	for _, c := range e.set.Chains {
		present, err := fw.ChainExists(ctx, c.Table, c.Name)
		if err != nil {
			return fmt.Errorf("check chain %s on %s: %w", c, proto, err)
		}
		if present {
			summary.Skipped++
			continue
		}
		if err := fw.NewChain(ctx, c.Table, c.Name); err != nil {
			return fmt.Errorf("create chain %s on %s: %w", c, proto, err)
		}
		summary.ChainsCreated++
		e.logger.Debug("created chain",
			slog.String("chain", c.String()),
			slog.String("protocol", proto.String()),
		)
	}
	return nil
}

func (e *Enforcer) ensureRules(ctx context.Context, fw Firewall, summary *Summary) error {
	proto := fw.Protocol()
	for _, r := range e.set.RulesFor(proto) {
		present, err := fw.Exists(ctx, r.Table, r.Chain, r.Spec)
		if err != nil {
			return fmt.Errorf("check rule %s on %s: %w", r, proto, err)
		}
		if present {
			summary.Skipped++
			continue
		}

		if r.Position > 0 {
			err = fw.Insert(ctx, r.Table, r.Chain, r.Position, r.Spec)
		} else {
			err = fw.Append(ctx, r.Table, r.Chain, r.Spec)
		}
		if err != nil {
			return fmt.Errorf("add rule %s on %s: %w", r, proto, err)
		}
		summary.RulesAdded++
		e.logger.Debug("added rule",
			slog.String("rule", r.String()),
			slog.String("protocol", proto.String()),
		)
	}
	return nil
}

func (e *Enforcer) ensurePolicies(ctx context.Context, fw Firewall, summary *Summary) error {
	proto := fw.Protocol()
	for _, p := range e.set.PoliciesFor(proto) {
		current, err := currentPolicy(ctx, fw, p.Table, p.Chain)
		if err != nil {
			return fmt.Errorf("check policy %s on %s: %w", p, proto, err)
		}
		if current == p.Target {
			summary.Skipped++
			continue
		}
		if err := fw.ChangePolicy(ctx, p.Table, p.Chain, p.Target); err != nil {
			return fmt.Errorf("set policy %s on %s: %w", p, proto, err)
		}
		summary.PoliciesSet++
		e.logger.Debug("set policy",
			slog.String("policy", p.String()),
			slog.String("protocol", proto.String()),
		)
	}
	return nil
}

// currentPolicy reads the chain's policy target from its listing. Built-in
// chains list a -P line first.
func currentPolicy(ctx context.Context, fw Firewall, table, chain string) (string, error) {
	lines, err := fw.List(ctx, table, chain)
	if err != nil {
		return "", err
	}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 3 && fields[0] == "-P" && fields[1] == chain {
			return fields[2], nil
		}
	}
	return "", fmt.Errorf("chain %s/%s has no policy", table, chain)
}
