package errors

import (
	"log/slog"
)

// LogHandler is an ErrorHandler that writes errors to a slog.Logger.
type LogHandler struct {
	// Logger receives the records. Nil means slog.Default().
	Logger *slog.Logger
	// Verbose enables detailed output including stack traces.
	Verbose bool
}

func (h *LogHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// HandleError logs a DanmakuError at error level.
func (h *LogHandler) HandleError(err *DanmakuError) {
	if err == nil {
		return
	}
	attrs := []any{"op", err.Op, "kind", err.Kind.String(), "err", err.Err}
	if err.Source != "" {
		attrs = append(attrs, "source", err.Source)
	}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, "stack", err.StackTrace)
	}
	h.logger().Error("danmaku error", attrs...)
}

// HandlePanic logs a PanicError at error level.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	attrs := []any{"value", err.Value}
	if err.Op != "" {
		attrs = append(attrs, "op", err.Op)
	}
	if h.Verbose && err.StackTrace != "" {
		attrs = append(attrs, "stack", err.StackTrace)
	}
	h.logger().Error("danmaku panic", attrs...)
}
