package main

import (
	"log/slog"
	"os"

	"github.com/ashwingupta21/VR-API/config"
)

// setupLogger builds the process logger from the effective logging
// settings. Level and format names are checked by config.Validate, so
// only known values reach this point.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.SlogLevel(),
		AddSource: cfg.Level == "debug",
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}
