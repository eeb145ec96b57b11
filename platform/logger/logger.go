// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// RunIDKey is the context key for the batch run ID
	RunIDKey contextKey = "run_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		return l.WithRunID(runID)
	}

	return l
}

// WithRunID returns a logger with the batch run ID attached.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("run_id", runID)),
	}
}

// BatchStarted logs the start of a batch of leads.
func (l *Logger) BatchStarted(batch, maxBatches, size int) {
	l.Info("batch_started",
		slog.Int("batch", batch),
		slog.Int("max_batches", maxBatches),
		slog.Int("size", size),
	)
}

// BatchCompleted logs the outcome of a batch of leads.
func (l *Logger) BatchCompleted(batch, succeeded, failed int, elapsed time.Duration) {
	l.Info("batch_completed",
		slog.Int("batch", batch),
		slog.Int("succeeded", succeeded),
		slog.Int("failed", failed),
		slog.Float64("elapsed_s", elapsed.Seconds()),
	)
}

// DuplicateFound logs a positive duplicate decision for a lead.
func (l *Logger) DuplicateFound(leadID, reason string) {
	l.Info("duplicate_found",
		slog.String("lead_id", leadID),
		slog.String("reason", reason),
	)
}

// RateLimitWait logs a pause forced by an upstream rate limit.
func (l *Logger) RateLimitWait(api string, delay time.Duration, attempt int) {
	l.Warn("rate_limit_wait",
		slog.String("api", api),
		slog.Float64("delay_s", delay.Seconds()),
		slog.Int("attempt", attempt),
	)
}

// LeadError logs a per-lead failure that did not abort the run.
func (l *Logger) LeadError(leadID, stage string, err error) {
	l.Error("lead_error",
		slog.String("lead_id", leadID),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// StoreError logs a lead datastore error.
func (l *Logger) StoreError(operation string, err error) {
	l.Error("leadstore_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RunSummary logs the final counters for a run.
func (l *Logger) RunSummary(attempted, succeeded, checkFailed, writeFailed, duplicates, blocked, remaining int, elapsed time.Duration) {
	l.Info("run_summary",
		slog.Int("attempted", attempted),
		slog.Int("succeeded", succeeded),
		slog.Int("check_failed", checkFailed),
		slog.Int("write_failed", writeFailed),
		slog.Int("duplicates", duplicates),
		slog.Int("blocked", blocked),
		slog.Int("remaining_unprocessed", remaining),
		slog.Float64("elapsed_s", elapsed.Seconds()),
	)
}
