// Package observability configures structured logging for Rollcam and
// attaches the per-message trace id to log lines.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rollcam/rollcam/common/redact"
	"github.com/rollcam/rollcam/common/trace"
)

// ParseLevel maps LOG_LEVEL values to slog levels; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// NewLogger builds a text or JSON logger writing to w.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup installs the default logger on stdout.
func Setup(level, format string) {
	slog.SetDefault(NewLogger(os.Stdout, level, format))
}

// WithTrace returns a logger that includes the trace_id carried by ctx.
func WithTrace(ctx context.Context) *slog.Logger {
	traceID := trace.FromContext(ctx)
	if traceID == "" {
		return slog.Default()
	}
	return slog.With("trace_id", traceID)
}

// LogConfig logs a configuration summary at info level with secret-looking
// keys masked and the given raw secrets scrubbed from all string values.
func LogConfig(msg string, fields map[string]any, secrets ...string) {
	masked := redact.Map(fields)
	args := make([]any, 0, len(masked)*2)
	for k, v := range masked {
		if s, ok := v.(string); ok {
			v = redact.URL(redact.String(s, secrets...))
		}
		args = append(args, k, v)
	}
	slog.Info(msg, args...)
}
