package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcodog/Cleo-Dashboard-sub001/api"
	cleogin "github.com/jcodog/Cleo-Dashboard-sub001/api/gin"
	"github.com/jcodog/Cleo-Dashboard-sub001/config"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/audit"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/bootstrap"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/credential"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/linkage"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/metrics"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/server"
	"github.com/jcodog/Cleo-Dashboard-sub001/internal/telemetry"
	"github.com/jcodog/Cleo-Dashboard-sub001/log"
	"github.com/jcodog/Cleo-Dashboard-sub001/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	configFile := os.Getenv("CLEO_CONFIG_FILE")

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		stdLog := zerolog.New(os.Stderr).With().Timestamp().Logger()
		stdLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := run(cfg); err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	level := log.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)
	appLogger := log.NewZerologAdapter(level, cfg.LogPretty)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting credential service", log.Fields{
		"http_addr":       cfg.HTTPAddr,
		"storage_backend": cfg.StorageBackend,
		"refresh_lock":    cfg.RefreshLock,
		"log_level":       level.String(),
		"otel_service":    cfg.OtelServiceName,
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName, nil)
	if err != nil {
		appLogger.Error(ctx, "Failed to initialize TracerProvider", err)
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mp, err := telemetry.InitMeterProvider(reg)
	if err != nil {
		appLogger.Error(ctx, "Failed to initialize MeterProvider", err)
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.Shutdown(shutdownCtx, appLogger, tp, mp)
	}()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		appLogger.Error(ctx, "Failed to open credential store", err, log.Fields{"backend": cfg.StorageBackend})
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			appLogger.Error(context.Background(), "Failed to close credential store", err)
		}
	}()

	locker, closeLocker, err := bootstrap.NewRefreshLocker(ctx, cfg)
	if err != nil {
		appLogger.Error(ctx, "Failed to create refresh locker", err, log.Fields{"refresh_lock": cfg.RefreshLock})
		return err
	}
	defer closeLocker()

	mt := metrics.New(reg)
	auditLog := audit.New(os.Stdout, cfg.OtelServiceName)

	manager := credential.NewManager(store, bootstrap.NewProviders(cfg),
		credential.WithLocker(locker),
		credential.WithLogger(appLogger),
		credential.WithMetrics(mt),
		credential.WithAudit(auditLog),
	)
	registry := linkage.NewRegistry(store,
		linkage.WithLogger(appLogger),
		linkage.WithMetrics(mt),
		linkage.WithAudit(auditLog),
	)

	var (
		_ api.CredentialService = manager
		_ api.LinkService       = registry
	)

	httpServer := server.NewHTTPServer(cfg, appLogger, store, reg,
		cleogin.NewLinksAPI(manager, registry, cfg.UserIDHeader),
	)

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info(ctx, "HTTP server listening", log.Fields{"addr": cfg.HTTPAddr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info(ctx, "Received signal, shutting down", log.Fields{"signal": sig.String()})
	case err, ok := <-serveErr:
		if ok {
			appLogger.Error(ctx, "HTTP server failed", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}

	appLogger.Info(shutdownCtx, "Server gracefully stopped")
	return nil
}
