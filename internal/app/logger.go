package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production always emits JSON so log
// shippers can parse order and payment events; elsewhere LOG_FORMAT picks
// between JSON and human-readable text.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
