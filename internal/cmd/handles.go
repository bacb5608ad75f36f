package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/denniswebb/gatewire/internal/config"
	"github.com/denniswebb/gatewire/internal/enforce"
	"github.com/denniswebb/gatewire/internal/iptables"
	"github.com/denniswebb/gatewire/internal/ruleset"
)

// newHandles builds one rule store handle per managed family: IPv4 always,
// IPv6 when enabled.
func newHandles(ctx context.Context, cfg config.Config, exec iptables.Executor, logger *slog.Logger) ([]*iptables.IPTables, error) {
	protocols := []iptables.Protocol{iptables.ProtocolIPv4}
	if cfg.IPv6 {
		protocols = append(protocols, iptables.ProtocolIPv6)
	}

	handles := make([]*iptables.IPTables, 0, len(protocols))
	for _, proto := range protocols {
		handle, err := newHandle(ctx, cfg, proto, exec, logger)
		if err != nil {
			return nil, err
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

func newHandle(ctx context.Context, cfg config.Config, proto iptables.Protocol, exec iptables.Executor, logger *slog.Logger) (*iptables.IPTables, error) {
	opts := iptables.Options{
		Protocol:    proto,
		Executor:    exec,
		Logger:      logger,
		LockPath:    cfg.LockPath,
		WaitSeconds: cfg.WaitSeconds,
	}
	if proto == iptables.ProtocolIPv6 {
		opts.Path = cfg.IP6TablesPath
	} else {
		opts.Path = cfg.IPTablesPath
	}

	handle, err := iptables.NewWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("create %s handle: %w", proto, err)
	}
	return handle, nil
}

func asFirewalls(handles []*iptables.IPTables) []enforce.Firewall {
	firewalls := make([]enforce.Firewall, len(handles))
	for i, h := range handles {
		firewalls[i] = h
	}
	return firewalls
}

// templateData assembles what rule spec templates may reference.
func templateData(cfg config.Config) ruleset.TemplateData {
	hostname, _ := os.Hostname()
	return ruleset.TemplateData{Hostname: hostname, Vars: cfg.Vars}
}

func protocolFor(ipv6 bool) iptables.Protocol {
	if ipv6 {
		return iptables.ProtocolIPv6
	}
	return iptables.ProtocolIPv4
}

func reconcileInterval(cfg config.Config) (time.Duration, error) {
	interval, err := time.ParseDuration(cfg.ReconcileInterval)
	if err != nil {
		return 0, fmt.Errorf("parse reconcile interval %q: %w", cfg.ReconcileInterval, err)
	}
	return interval, nil
}
