package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/yfetch-digest/internal/adapters/http"
	"github.com/kirillkom/yfetch-digest/internal/bootstrap"
	"github.com/kirillkom/yfetch-digest/internal/config"
	"github.com/kirillkom/yfetch-digest/internal/observability/logging"
	"github.com/kirillkom/yfetch-digest/internal/observability/metrics"
)

const serviceName = "gateway"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Install(serviceName, "info").Error("config_error", "error", err)
		os.Exit(1)
	}
	logger := logging.Install(serviceName, cfg.LogLevel)

	gw, err := bootstrap.NewGateway(cfg)
	if err != nil {
		logger.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}

	handler := httpadapter.NewGatewayHandler(httpadapter.GatewayConfig{
		AllowedOrigin: cfg.CORSAllowedOrigin,
	}, gw.Verifier, gw.Forwarder).WithMetrics(metrics.NewHTTPServerMetrics(serviceName)).Handler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:         ":" + cfg.GatewayPort,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.ProviderTimeoutSeconds)*time.Second + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("gateway_listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway_server_error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway_shutdown_error", "error", err)
	}
}
