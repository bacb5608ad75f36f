package metrics

import (
	"log/slog"
	"net/http"
	"sync"
)

// HealthChecker tracks readiness signals for the enforcement daemon.
type HealthChecker struct {
	mu               sync.RWMutex
	binariesVerified bool
	converged        bool
	logger           *slog.Logger
}

// NewHealthChecker returns a HealthChecker reporting not ready until both
// signals arrive.
func NewHealthChecker(logger *slog.Logger) *HealthChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthChecker{logger: logger}
}

// SetBinariesVerified records that the management binaries were found and
// their versions detected.
func (h *HealthChecker) SetBinariesVerified() {
	h.mu.Lock()
	h.binariesVerified = true
	h.mu.Unlock()
}

// SetConverged records whether the latest reconcile pass completed without
// error. Readiness drops again when a pass fails.
func (h *HealthChecker) SetConverged(ok bool) {
	h.mu.Lock()
	h.converged = ok
	h.mu.Unlock()
}

// IsReady reports whether both readiness signals are satisfied.
func (h *HealthChecker) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.binariesVerified && h.converged
}

// Handler produces an HTTP handler for the /readyz endpoint.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		binariesVerified := h.binariesVerified
		converged := h.converged
		h.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if binariesVerified && converged {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK\n"))
			return
		}

		h.logger.Warn("readiness check not yet passing",
			slog.Bool("binaries_verified", binariesVerified),
			slog.Bool("converged", converged),
		)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Service Unavailable\n"))
	})
}
