package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global logger instance configured for the application.
var Logger *slog.Logger

// InitLogger configures the global logger. Logs go to stderr so command
// output on stdout stays machine-readable.
func InitLogger(level, format, service string) {
	Logger = newLogger(os.Stderr, level, format, service)
	slog.SetDefault(Logger)
}

// GetLogger returns the global logger instance.
func GetLogger() *slog.Logger {
	return Logger
}

func newLogger(w io.Writer, level, format, service string) *slog.Logger {
	options := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var inner slog.Handler
	switch strings.ToLower(format) {
	case "text":
		inner = slog.NewTextHandler(w, options)
	default:
		inner = slog.NewJSONHandler(w, options)
	}

	hostname, _ := os.Hostname()

	return slog.New(&serviceHandler{
		next:     inner,
		service:  service,
		hostname: hostname,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// serviceHandler stamps every record with the service identity and the host
// it runs on.
type serviceHandler struct {
	next     slog.Handler
	service  string
	hostname string
}

func (h *serviceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *serviceHandler) Handle(ctx context.Context, record slog.Record) error {
	clone := record.Clone()
	clone.AddAttrs(
		slog.String("service", h.service),
		slog.String("host", h.hostname),
		slog.String("status", levelToStatus(clone.Level)),
	)
	return h.next.Handle(ctx, clone)
}

func (h *serviceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &serviceHandler{
		next:     h.next.WithAttrs(attrs),
		service:  h.service,
		hostname: h.hostname,
	}
}

func (h *serviceHandler) WithGroup(name string) slog.Handler {
	return &serviceHandler{
		next:     h.next.WithGroup(name),
		service:  h.service,
		hostname: h.hostname,
	}
}

func levelToStatus(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelWarn:
		return "warning"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}
