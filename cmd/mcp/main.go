package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/gallery-curator/internal/adapters/mcp"
	"github.com/kirillkom/gallery-curator/internal/bootstrap"
	"github.com/kirillkom/gallery-curator/internal/config"
	"github.com/kirillkom/gallery-curator/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	// Stdout carries the MCP protocol; route logs to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.SearchUC, version)
	slog.Info("mcp server listening on stdio")
	if err := srv.ServeStdio(); err != nil {
		slog.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
