package featurespace

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with featurespace-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, nil))
}

// WithModel adds a model name field to the logger.
func (l *Logger) WithModel(name string) *Logger {
	return &Logger{Logger: l.Logger.With("model", name)}
}

// WithGenerator adds a generator name field to the logger.
func (l *Logger) WithGenerator(name string) *Logger {
	return &Logger{Logger: l.Logger.With("generator", name)}
}

// LogFit logs the fit of a composed feature space.
func (l *Logger) LogFit(ctx context.Context, generators, size int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fit failed",
			"generators", generators,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "feature space fitted",
		"generators", generators,
		"size", size,
		"duration", duration,
	)
}

// LogExpansion logs the derived features added to a model during training.
func (l *Logger) LogExpansion(ctx context.Context, label string, expanded, derived, size int) {
	if expanded == 0 {
		l.DebugContext(ctx, "no features expanded", "label", label, "size", size)
		return
	}
	l.InfoContext(ctx, "features expanded",
		"label", label,
		"expanded", expanded,
		"derived", derived,
		"size", size,
	)
}

// LogIteration logs one optimizer step.
func (l *Logger) LogIteration(ctx context.Context, step int, loss, delta float64, size int) {
	l.DebugContext(ctx, "iteration",
		"step", step,
		"loss", loss,
		"delta", delta,
		"size", size,
	)
}

// LogTrain logs a finished training run.
func (l *Logger) LogTrain(ctx context.Context, labels, examples int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "training failed",
			"labels", labels,
			"examples", examples,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "training completed",
		"labels", labels,
		"examples", examples,
		"duration", duration,
	)
}

// LogSave logs a model save.
func (l *Logger) LogSave(ctx context.Context, name string, sections int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "model saved",
		"name", name,
		"sections", sections,
	)
}

// LogLoad logs a model load.
func (l *Logger) LogLoad(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "model loaded", "name", name)
}
