// Package logging configures the process-wide slog handler.
package logging

import (
	"log/slog"
	"os"
)

// Setup configures the default slog logger from the global CLI flags.
// When structured is true, logs are emitted as JSON to stderr; otherwise a
// human-readable text handler is used. Debug lowers the level to LevelDebug.
func Setup(debug bool, structured bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
