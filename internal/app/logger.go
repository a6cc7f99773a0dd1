package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. The "json" format is meant for log
// shipping in deployed environments; anything else gets the readable text
// handler for local work.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}

	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
