// Package logger provides structured logging for Parley.
//
// logger.go - slog-based logger setup
//
// This file contains:
// - Init for configuring the process-wide slog handler
// - Context-key enrichment (conversation and session ids)
// - Package-level helpers used across internal packages
//
// Decision functions log structured records (decider name, input shape,
// output) through this package so tests can assert on decision
// provenance without scraping text output.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var (
	slogger *slog.Logger
	logFile *os.File
)

// Init initializes the slog-based logger.
// If jsonOutput is true, logs are formatted as JSON for production.
// An empty logDir logs to stdout only.
func Init(logDir string, jsonOutput bool) error {
	writer := io.Writer(os.Stdout)

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return err
		}

		logFileName := "parley-" + time.Now().Format("2006-01-02") + ".log"
		logFilePath := filepath.Join(logDir, logFileName)

		var err error
		logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}

		writer = io.MultiWriter(os.Stdout, logFile)
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(writer, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	slogger = slog.New(handler)
	slog.SetDefault(slogger)

	return nil
}

// Close closes the log file if one was opened.
func Close() error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

// Slog returns the slog.Logger instance for structured logging.
func Slog() *slog.Logger {
	if slogger == nil {
		return slog.Default()
	}
	return slogger
}

// Context keys for structured logging
type contextKey string

const (
	ContextKeyConversationID contextKey = "conversation_id"
	ContextKeySessionID      contextKey = "session_id"
	ContextKeyTransport      contextKey = "transport"
)

// WithContext returns a logger enriched with fields from the context.
func WithContext(ctx context.Context) *slog.Logger {
	logger := Slog()

	if conversationID := ctx.Value(ContextKeyConversationID); conversationID != nil {
		logger = logger.With("conversation_id", conversationID)
	}
	if sessionID := ctx.Value(ContextKeySessionID); sessionID != nil {
		logger = logger.With("session_id", sessionID)
	}
	if transport := ctx.Value(ContextKeyTransport); transport != nil {
		logger = logger.With("transport", transport)
	}

	return logger
}

// InfoContext logs an info message with context fields.
func InfoContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// ErrorContext logs an error with context fields.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

// WarnContext logs a warning with context fields.
func WarnContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// DebugContext logs debug info with context fields.
func DebugContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}
