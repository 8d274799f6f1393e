// Package logging wires up the context-scoped logger the CLIs share: a
// human console handler on stderr, optionally teed to a JSON log file.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog"
	charmlog "github.com/charmbracelet/log"
	slogmulti "github.com/samber/slog-multi"
)

// Setup attaches a configured logger to ctx and returns the context plus a
// cleanup func. A file that cannot be opened degrades to console-only
// logging with a warning rather than failing the run.
func Setup(ctx context.Context, debug bool, filePath string) (context.Context, func()) {
	level := charmlog.InfoLevel
	slogLevel := slog.LevelInfo
	if debug {
		level = charmlog.DebugLevel
		slogLevel = slog.LevelDebug
	}

	console := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Level:           level,
	})

	handler := slog.Handler(console)
	cleanup := func() {}

	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			console.Warn("failed to open log file, logging to console only",
				"path", filePath, "error", err)
		} else {
			handler = slogmulti.Fanout(
				handler,
				slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slogLevel}),
			)
			cleanup = func() { _ = f.Close() }
		}
	}

	logger := clog.New(handler)
	ctx = clog.WithLogger(ctx, logger)
	slog.SetDefault(&logger.Logger)

	return ctx, cleanup
}
