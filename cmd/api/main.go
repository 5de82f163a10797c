package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/kirillkom/gallery-curator/internal/adapters/http"
	"github.com/kirillkom/gallery-curator/internal/bootstrap"
	"github.com/kirillkom/gallery-curator/internal/config"
	"github.com/kirillkom/gallery-curator/internal/observability/logging"
	"github.com/kirillkom/gallery-curator/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	app.SetSearchObserver(serverMetrics)

	router := httpadapter.NewRouter(
		app.SearchUC,
		app.AgentUC,
		app.IngestUC,
		httpadapter.WithMetrics(serverMetrics),
		httpadapter.WithAuthToken(cfg.AuthToken),
		httpadapter.WithTenantRateLimit(cfg.TenantRPS, cfg.TenantBurst),
	).Handler()

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", ":"+cfg.APIPort)
	if err != nil {
		slog.Error("api listen error", "error", err)
		os.Exit(1)
	}
	if cfg.MaxConns > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConns)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("api listening", "port", cfg.APIPort, "max_conns", cfg.MaxConns)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		slog.Error("api server error", "error", err)
		os.Exit(1)
	}
}
