package app

import (
	"io"
	"log/slog"
)

// newLogger builds the run's logger without touching the global slog
// default, so concurrent App instances and tests keep isolated output.
// The level string is validated at flag parsing; anything that still
// slips through falls back to info rather than failing a run over a
// logging flag.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
