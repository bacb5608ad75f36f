package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthCheckerSignals(t *testing.T) {
	t.Parallel()

	h := NewHealthChecker(quietLogger())

	if h.IsReady() {
		t.Fatal("expected checker to start not ready")
	}

	h.SetBinariesVerified()
	if h.IsReady() {
		t.Fatal("expected checker to stay not ready until converged")
	}

	h.SetConverged(true)
	if !h.IsReady() {
		t.Fatal("expected checker to be ready after both signals")
	}

	h.SetConverged(false)
	if h.IsReady() {
		t.Fatal("expected readiness to drop after a failed pass")
	}

	h.SetConverged(true)
	if !h.IsReady() {
		t.Fatal("expected readiness to recover")
	}
}

func TestHealthHandlerResponses(t *testing.T) {
	t.Parallel()

	h := NewHealthChecker(quietLogger())
	handler := h.Handler()

	probe := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := probe()
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before signals, got %d", rec.Code)
	}
	if rec.Body.String() != "Service Unavailable\n" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	h.SetBinariesVerified()
	h.SetConverged(true)

	rec = probe()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after signals, got %d", rec.Code)
	}
	if rec.Body.String() != "OK\n" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}
