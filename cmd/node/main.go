package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sablecluster/matchmaker/internal/adminhttp"
	"github.com/sablecluster/matchmaker/internal/config"
	"github.com/sablecluster/matchmaker/internal/driver"
	"github.com/sablecluster/matchmaker/internal/logging"
	"github.com/sablecluster/matchmaker/internal/matchmaker"
	"github.com/sablecluster/matchmaker/internal/metrics"
	"github.com/sablecluster/matchmaker/internal/observability"
	"github.com/sablecluster/matchmaker/internal/presence"
)

func main() {
	cfg := config.Load()

	otelCleanup, err := observability.InitOpenTelemetry("matchmaker-node", "1.0.0")
	if err != nil {
		log.Fatalf("failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := otelCleanup(context.Background()); err != nil {
			log.Printf("error shutting down OpenTelemetry: %v", err)
		}
	}()

	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	p, err := newPresence(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize presence backend: %v", err)
	}

	d, err := newDriver(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize driver backend: %v", err)
	}

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	mm := matchmaker.New(cfg.ProcessID, p, d, logger, cfg.RemoteRoomShortTimeout)
	if err := mm.Setup(ctx); err != nil {
		logger.Fatal(ctx, "failed to set up matchmaker: %v", err)
	}

	host, err := os.Hostname()
	if err != nil {
		host = "127.0.0.1"
	}
	if err := mm.RegisterNode(ctx, host, cfg.Port); err != nil {
		logger.Warn(ctx, "failed to register node for discovery: %v", err)
	}

	admin := adminhttp.NewServer(":"+cfg.Port, mm, registry)
	go func() {
		logger.Info(ctx, "starting admin server on :%s", cfg.Port)
		if err := admin.Start(); err != nil {
			logger.Fatal(ctx, "admin server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info(shutdownCtx, "shutting down node %s", mm.ProcessID())

	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "admin server shutdown error: %v", err)
	}
	if err := mm.UnregisterNode(shutdownCtx, host, cfg.Port); err != nil {
		logger.Error(shutdownCtx, "node unregister error: %v", err)
	}
	if err := mm.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "matchmaker shutdown error: %v", err)
	}

	logger.Info(shutdownCtx, "node stopped")
}

func newPresence(ctx context.Context, cfg *config.Config) (presence.Presence, error) {
	switch cfg.PresenceBackend {
	case "redis":
		return presence.NewRedis(cfg.RedisURL)
	case "local", "":
		return presence.NewLocal(), nil
	default:
		return nil, fmt.Errorf("unknown PRESENCE_BACKEND %q", cfg.PresenceBackend)
	}
}

func newDriver(ctx context.Context, cfg *config.Config) (driver.Driver, error) {
	switch cfg.DriverBackend {
	case "postgres":
		return driver.NewPostgres(ctx, cfg.DatabaseURL)
	case "local", "":
		return driver.NewLocal(), nil
	default:
		return nil, fmt.Errorf("unknown DRIVER_BACKEND %q", cfg.DriverBackend)
	}
}
