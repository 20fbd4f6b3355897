package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/clinical-evidence-engine/internal/bootstrap"
	"github.com/kirillkom/clinical-evidence-engine/internal/config"
	"github.com/kirillkom/clinical-evidence-engine/internal/core/domain"
	"github.com/kirillkom/clinical-evidence-engine/internal/infrastructure/queue/nats"
	"github.com/kirillkom/clinical-evidence-engine/internal/observability/logging"
	"github.com/kirillkom/clinical-evidence-engine/internal/observability/metrics"
)

const serviceName = "evidence-worker"

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWithOverlay()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	if err != nil {
		logger.Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, logger, workerMetrics)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	transport, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		QueueGroup: cfg.NATSQueueGroup,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("nats_connect_failed", "error", err)
		os.Exit(1)
	}
	defer transport.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	search := func(reqCtx context.Context, req domain.EvidenceSearchRequest) (*domain.EvidenceSearchResult, error) {
		workerMetrics.StartRequest()
		started := time.Now()
		result, err := app.SearchUC.Search(reqCtx, req)
		workerMetrics.FinishRequest(serviceName, time.Since(started), err)
		return result, err
	}

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "queue_group", cfg.NATSQueueGroup)
	if err := transport.Serve(ctx, search); err != nil {
		logger.Error("worker_serve_failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker_stopped")
}
