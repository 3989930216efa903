// Package observability provides structured logging, metrics and tracing
// for flowdoc documents, commands and collaboration sessions.
//
// Logging uses log/slog. Metrics and tracing use OpenTelemetry and fall back
// to no-op implementations when disabled. Every Log* helper accepts a nil
// logger and does nothing in that case.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds document context to a logger.
//
//	logger = EnrichLogger(logger, graph.ID, page.ID)
//	logger.Info("loaded") // includes doc_id and page_id
func EnrichLogger(logger *slog.Logger, docID, pageID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	attrs := []any{slog.String("doc_id", docID)}
	if pageID != "" {
		attrs = append(attrs, slog.String("page_id", pageID))
	}
	return logger.With(attrs...)
}

// LogShape logs a shape index change at debug level.
func LogShape(logger *slog.Logger, op, pageID, shapeID, shapeType string) {
	if logger == nil {
		return
	}
	logger.Debug("shape "+op,
		slog.String("page_id", pageID),
		slog.String("shape_id", shapeID),
		slog.String("shape_type", shapeType),
	)
}

// LogCommand logs a successful command transition.
func LogCommand(logger *slog.Logger, command, transition string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("command applied",
		slog.String("command", command),
		slog.String("transition", transition),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogCommandError logs a failed command transition.
func LogCommandError(logger *slog.Logger, command, transition string, err error) {
	if logger == nil {
		return
	}
	logger.Error("command failed",
		slog.String("command", command),
		slog.String("transition", transition),
		slog.String("error", err.Error()),
	)
}

// LogDispatch logs a reducer dispatch.
func LogDispatch(logger *slog.Logger, shapeID, action string, changed bool) {
	if logger == nil {
		return
	}
	logger.Debug("reducer dispatched",
		slog.String("shape_id", shapeID),
		slog.String("action", action),
		slog.Bool("changed", changed),
	)
}

// LogCollabState logs a collaboration client state change.
func LogCollabState(logger *slog.Logger, session, mode, state string) {
	if logger == nil {
		return
	}
	logger.Info("collaboration "+state,
		slog.String("session", session),
		slog.String("mode", mode),
	)
}

// LogCollabError logs a transport failure. These never reach a caller.
func LogCollabError(logger *slog.Logger, session, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("collaboration transport error",
		slog.String("session", session),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// LogSave logs a persisted document.
func LogSave(logger *slog.Logger, docID string, sizeBytes int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("document saved",
		slog.String("doc_id", docID),
		slog.Int("size_bytes", sizeBytes),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSaveError logs a failed save.
func LogSaveError(logger *slog.Logger, docID string, attempts int, err error) {
	if logger == nil {
		return
	}
	logger.Error("document save failed",
		slog.String("doc_id", docID),
		slog.Int("attempts", attempts),
		slog.String("error", err.Error()),
	)
}

// TimedOperation returns a func reporting the elapsed milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
