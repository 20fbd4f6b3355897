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

	httpadapter "github.com/kirillkom/clinical-evidence-engine/internal/adapters/http"
	"github.com/kirillkom/clinical-evidence-engine/internal/bootstrap"
	"github.com/kirillkom/clinical-evidence-engine/internal/config"
	"github.com/kirillkom/clinical-evidence-engine/internal/observability/logging"
	"github.com/kirillkom/clinical-evidence-engine/internal/observability/metrics"
)

const serviceName = "evidence-api"

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

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, logger, httpMetrics)
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	opts := []httpadapter.RouterOption{httpadapter.WithMetrics(httpMetrics)}
	for _, check := range app.Checks {
		opts = append(opts, httpadapter.WithReadinessCheck(check.Name, check.Check))
	}
	router := httpadapter.NewRouter(cfg, app.SearchUC, app.SearchUC, opts...).Handler()

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.SearchTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "backend", cfg.RetrievalBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
