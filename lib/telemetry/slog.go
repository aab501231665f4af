package telemetry

import (
	"log/slog"
	"os"
)

// InitSlog installs the default slog handler for the process. Pass debug
// to enable per-request logging in the scraping clients.
func InitSlog(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
