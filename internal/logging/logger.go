// Package logging provides the structured logger used across the
// matchmaker node, enriched with request/process/room IDs pulled from
// context rather than threaded through every call signature.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/sablecluster/matchmaker/internal/contextkey"
)

// Logger wraps slog with context-aware enrichment.
type Logger struct {
	slog *slog.Logger
}

// New creates a new structured logger at the given level ("debug",
// "info", "warn", "error"; defaults to "info" on parse failure).
func New(logLevel string) *Logger {
	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		*level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})

	return &Logger{slog: slog.New(handler)}
}

// WithContext returns a child logger carrying request/process/room IDs
// found on ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	handler := l.slog.Handler()

	if reqID, ok := ctx.Value(contextkey.ContextKeyRequestID).(uuid.UUID); ok {
		handler = handler.WithAttrs([]slog.Attr{slog.String("request_id", reqID.String())})
	}
	if processID, ok := ctx.Value(contextkey.ContextKeyProcessID).(string); ok && processID != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("process_id", processID)})
	}
	if roomID, ok := ctx.Value(contextkey.ContextKeyRoomID).(string); ok && roomID != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("room_id", roomID)})
	}

	return slog.New(handler)
}

// Info logs an info message.
func (l *Logger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Info(fmt.Sprintf(msg, args...))
}

// Warn logs a warning message.
func (l *Logger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Warn(fmt.Sprintf(msg, args...))
}

// Error logs an error message.
func (l *Logger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Error(fmt.Sprintf(msg, args...))
}

// Debug logs a debug message.
func (l *Logger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Debug(fmt.Sprintf(msg, args...))
}

// Fatal logs an error message and exits. Reserved for unrecoverable
// startup failures.
func (l *Logger) Fatal(ctx context.Context, msg string, args ...interface{}) {
	l.WithContext(ctx).Error(fmt.Sprintf(msg, args...))
	os.Exit(1)
}
