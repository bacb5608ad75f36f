package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/denniswebb/gatewire/internal/iptables"
)

// Metrics bundles Prometheus instruments for the enforcement daemon.
type Metrics struct {
	registry      *prometheus.Registry
	invocations   *prometheus.CounterVec
	lockTimeouts  prometheus.Counter
	reconcileRuns *prometheus.CounterVec
	managedChains prometheus.Gauge
	managedRules  prometheus.Gauge
	lastConverged prometheus.Gauge
}

// NewMetrics constructs a Metrics instance with an isolated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	invocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatewire",
		Name:      "invocations_total",
		Help:      "Total number of rule management binary invocations by binary and outcome.",
	}, []string{"binary", "outcome"})

	lockTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gatewire",
		Name:      "lock_timeouts_total",
		Help:      "Total number of operations that gave up waiting for the rule store lock.",
	})

	reconcileRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gatewire",
		Name:      "reconcile_runs_total",
		Help:      "Total number of reconcile passes by outcome.",
	}, []string{"outcome"})

	managedChains := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gatewire",
		Name:      "managed_chains",
		Help:      "Number of chains the declared ruleset manages.",
	})

	managedRules := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gatewire",
		Name:      "managed_rules",
		Help:      "Number of rules the declared ruleset manages.",
	})

	lastConverged := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gatewire",
		Name:      "last_converged_timestamp_seconds",
		Help:      "Unix time of the last reconcile pass that completed without error.",
	})

	registry.MustRegister(invocations, lockTimeouts, reconcileRuns, managedChains, managedRules, lastConverged)

	return &Metrics{
		registry:      registry,
		invocations:   invocations,
		lockTimeouts:  lockTimeouts,
		reconcileRuns: reconcileRuns,
		managedChains: managedChains,
		managedRules:  managedRules,
		lastConverged: lastConverged,
	}
}

// ObserveInvocation records one binary invocation and its outcome.
func (m *Metrics) ObserveInvocation(binary string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.invocations.WithLabelValues(binary, outcome).Inc()
}

// ObserveReconcile records the outcome of one reconcile pass. Lock timeouts
// are counted here because both lock strategies surface through the pass
// error chain.
func (m *Metrics) ObserveReconcile(err error) {
	if err == nil {
		m.reconcileRuns.WithLabelValues("success").Inc()
		m.lastConverged.SetToCurrentTime()
		return
	}
	m.reconcileRuns.WithLabelValues("error").Inc()
	if errors.Is(err, iptables.ErrLockTimeout) {
		m.lockTimeouts.Inc()
	}
}

// SetManagedCounts records the size of the declared ruleset.
func (m *Metrics) SetManagedCounts(chains, rules int) {
	m.managedChains.Set(float64(chains))
	m.managedRules.Set(float64(rules))
}

// Handler exposes the Prometheus scrape handler bound to the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// InstrumentExecutor wraps an executor so every invocation is counted.
func (m *Metrics) InstrumentExecutor(next iptables.Executor) iptables.Executor {
	return &instrumentedExecutor{next: next, metrics: m}
}

type instrumentedExecutor struct {
	next    iptables.Executor
	metrics *Metrics
}

func (e *instrumentedExecutor) Run(ctx context.Context, command string, args ...string) (iptables.Output, error) {
	out, err := e.next.Run(ctx, command, args...)
	e.metrics.ObserveInvocation(command, err)
	return out, err
}

func (e *instrumentedExecutor) RunInput(ctx context.Context, stdin []byte, command string, args ...string) (iptables.Output, error) {
	out, err := e.next.RunInput(ctx, stdin, command, args...)
	e.metrics.ObserveInvocation(command, err)
	return out, err
}
