package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/yfetch-digest/internal/bootstrap"
	"github.com/kirillkom/yfetch-digest/internal/config"
	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/observability/logging"
	"github.com/kirillkom/yfetch-digest/internal/observability/metrics"
)

const (
	serviceName = "worker"
	jobTimeout  = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Install(serviceName, "info").Error("config_error", "error", err)
		os.Exit(1)
	}
	logger := logging.Install(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, serviceName, workerMetrics.Registerer())
	if err != nil {
		logger.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeSummaryRequested(ctx, func(handlerCtx context.Context, job domain.SummaryJob) error {
		workerMetrics.ObserveQueueLag(serviceName, time.Since(job.RequestedAt))
		workerMetrics.StartJob()
		started := time.Now()

		processCtx, cancel := context.WithTimeout(handlerCtx, jobTimeout)
		defer cancel()
		err := app.Jobs.ProcessJob(processCtx, job)

		workerMetrics.FinishJob(serviceName, time.Since(started), err)
		return err
	})
	if err != nil {
		logger.Error("worker_subscribe_error", "error", err)
	}
}
