package observability

import (
	"log/slog"
	"os"
)

// NewLogger emits JSON to stdout and stamps trace/span ids onto records logged with a span in context.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(handler))
}
