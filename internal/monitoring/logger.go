// Package monitoring carries the service's structured logging, in-process
// metrics and the gin middleware that feeds them.
package monitoring

import (
	"log/slog"
	"os"
	"time"
)

var startTime = time.Now()

// Logger is a thin wrapper over slog with helpers for the events this
// service emits.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// RequestLogger logs one HTTP request.
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// RunLogger logs a completed analysis run.
func (l *Logger) RunLogger(runID string, records, tickets, contributors, alerts, dropped int, duration time.Duration) {
	l.Info("Analysis Run Completed",
		"run_id", runID,
		"records", records,
		"tickets", tickets,
		"contributors", contributors,
		"alerts", alerts,
		"dropped_records", dropped,
		"duration_ms", duration.Milliseconds(),
	)
}

// IngestLogger logs a parsed upload.
func (l *Logger) IngestLogger(source string, rows int, warnings int) {
	l.Info("Ingest Completed",
		"source", source,
		"rows", rows,
		"warnings", warnings,
	)
}

// SystemLogger logs lifecycle events such as startup and shutdown.
func (l *Logger) SystemLogger(event, details string) {
	l.Info("System Event",
		"event", event,
		"details", details,
		"uptime", time.Since(startTime).String(),
	)
}

// SetLevel replaces the handler with one at the given level.
func (l *Logger) SetLevel(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	l.Logger = slog.New(handler)
}
