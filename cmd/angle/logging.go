package main

import (
	"io"
	"log/slog"
)

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, &opts))
}

func logLevel(trace bool) slog.Level {
	if trace {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
