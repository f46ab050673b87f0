package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// Config holds logger configuration
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, text
	Output      io.Writer
	AddSource   bool
	ServiceName string
	Environment string
}

// ParseLevel maps a configured level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// NewLogger builds the gateway logger. Every record carries the service name,
// the environment and any correlation fields found on the context.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:       ParseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: utcTime,
	}

	var base slog.Handler = slog.NewJSONHandler(out, opts)
	if cfg.Format == "text" {
		base = slog.NewTextHandler(out, opts)
	}

	return slog.New(&correlatingHandler{
		next: base.WithAttrs([]slog.Attr{
			slog.String("service", cfg.ServiceName),
			slog.String("environment", cfg.Environment),
		}),
	})
}

func utcTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
	}
	return a
}

// correlatingHandler copies correlation fields from the context onto records.
type correlatingHandler struct {
	next slog.Handler
}

func (h *correlatingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *correlatingHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(fieldsOf(ctx)...)
	return h.next.Handle(ctx, r)
}

func (h *correlatingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &correlatingHandler{next: h.next.WithAttrs(attrs)}
}

func (h *correlatingHandler) WithGroup(name string) slog.Handler {
	return &correlatingHandler{next: h.next.WithGroup(name)}
}

// LogPanic logs a recovered panic value with the current goroutine's stack.
func LogPanic(logger *slog.Logger, panicValue any) {
	buf := make([]byte, 8<<10)
	buf = buf[:runtime.Stack(buf, false)]

	logger.Error("panic recovered",
		"panic", panicValue,
		"stack_trace", string(buf),
	)
}

// RequestEntry describes one served HTTP request.
type RequestEntry struct {
	Method       string
	Path         string
	Status       int
	Duration     time.Duration
	BytesWritten int64
	ClientIP     string
	UserAgent    string
}

// LogRequest writes entry at a level chosen by its status class.
func LogRequest(ctx context.Context, logger *slog.Logger, entry RequestEntry) {
	level := slog.LevelInfo
	switch {
	case entry.Status >= 500:
		level = slog.LevelError
	case entry.Status >= 400:
		level = slog.LevelWarn
	}

	logger.LogAttrs(ctx, level, "http request",
		slog.String("method", entry.Method),
		slog.String("path", entry.Path),
		slog.Int("status_code", entry.Status),
		slog.Int64("duration_ms", entry.Duration.Milliseconds()),
		slog.Int64("bytes_written", entry.BytesWritten),
		slog.String("client_ip", entry.ClientIP),
		slog.String("user_agent", entry.UserAgent),
	)
}
