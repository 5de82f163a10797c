package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

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
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:         ":" + cfg.WorkerMetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		slog.Info("worker subscribed", "subject", cfg.NATSSubject)
		return app.Queue.SubscribeAnalysisFinalized(groupCtx, func(handlerCtx context.Context, analysisID string) error {
			workerMetrics.StartIndexing()
			start := time.Now()

			indexCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
			defer cancel()

			err := app.IndexUC.IndexByID(indexCtx, analysisID)
			workerMetrics.FinishIndexing(time.Since(start), err)
			return err
		})
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
