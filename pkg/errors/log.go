package errors

import (
	"log/slog"

	"github.com/go-drift/flatland/pkg/logging"
)

// LogHandler is an ErrorHandler that writes errors through the package
// logger (see logging.SetLogger).
type LogHandler struct {
	// Verbose adds stack traces to the log records.
	Verbose bool
}

// HandleError logs an EmbedderError at error level.
func (h *LogHandler) HandleError(err *EmbedderError) {
	if err == nil {
		return
	}
	attrs := []any{
		slog.String("op", err.Op),
		slog.String("kind", err.Kind.String()),
	}
	if err.ViewID != NoView {
		attrs = append(attrs, slog.Int64("viewID", err.ViewID))
	}
	attrs = append(attrs, slog.Any("err", err.Err))
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, slog.String("stack", err.StackTrace))
	}
	logging.Logger().Error("embedder error", attrs...)
}

// HandlePanic logs a PanicError at error level.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	attrs := []any{slog.String("op", err.Op), slog.Any("value", err.Value)}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, slog.String("stack", err.StackTrace))
	}
	logging.Logger().Error("embedder panic", attrs...)
}
