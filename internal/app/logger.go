package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production runs LOG_FORMAT=json for
// the log pipeline; the pretty text handler is for local development.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)).With(
			slog.String("app", "tallerpro"),
			slog.String("env", cfg.AppEnv),
		)
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
