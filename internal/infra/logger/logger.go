package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"quorum-ai/internal/infra/config"
)

// serviceName tags every record so aggregated logs from co-located
// services stay attributable.
const serviceName = "quorum"

const logFileMode = 0o600

// New builds the service logger from config. The returned closer flushes
// and closes a file sink; for stdout/stderr it is a no-op. Defer it.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	sink, closeSink, err := sinkFor(cfg.Output)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	handler := handlerFor(cfg.Format, sink, levelFor(cfg.Level))
	log := slog.New(handler).With(slog.String("service", serviceName))
	return log, closeSink, nil
}

// Discard returns a logger that drops everything. Useful in tests and for
// components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func handlerFor(format string, sink io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(sink, opts)
	}
	return slog.NewTextHandler(sink, opts)
}

// levelFor maps a config level string to slog. Unknown values fall back
// to info rather than failing startup over a typo.
func levelFor(s string) slog.Level {
	switch strings.ToLower(s) {
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

// sinkFor resolves the output target. Anything that is not stdout or
// stderr is treated as a file path, opened for append.
func sinkFor(output string) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, noop, nil
	case "stderr", "":
		return os.Stderr, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFileMode)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}
