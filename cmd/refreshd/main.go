// Command refreshd runs the summary refresh service as a daemon: it
// refreshes mv_region_dashboard from MySQL on a fixed interval and serves
// health, readiness, metrics, and summary endpoints over HTTP.
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

	httpadapter "github.com/cloudburst-mgmt/summary-refresh-service/internal/adapter/http"
	kafkaadapter "github.com/cloudburst-mgmt/summary-refresh-service/internal/adapter/kafka"
	mysqladapter "github.com/cloudburst-mgmt/summary-refresh-service/internal/adapter/mysql"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/config"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/observability"
	"github.com/cloudburst-mgmt/summary-refresh-service/internal/refresh"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	store, err := mysqladapter.Open(cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Refresh-completed events are feature-flagged via KAFKA_ENABLED.
	var notifier refresh.Notifier
	var kafkaNotifier *kafkaadapter.Notifier
	if cfg.KafkaEnabled {
		kafkaNotifier = kafkaadapter.NewNotifier(cfg, logger)
		notifier = kafkaNotifier
		logger.Info("kafka notifications enabled", "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka notifications disabled")
	}

	refresher := refresh.New(logger, metrics, notifier)
	srv := httpadapter.NewServer(cfg.HTTPAddr, refresher, refresher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go runRefreshLoop(ctx, refresher, store, cfg.RefreshInterval, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaNotifier != nil {
		if err := kafkaNotifier.Close(); err != nil {
			logger.Error("kafka notifier close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// runRefreshLoop refreshes immediately on startup and then on every tick
// until ctx is cancelled. A failed run is logged and retried on the next
// tick; the previous table contents stay in place.
func runRefreshLoop(ctx context.Context, r *refresh.Refresher, store *mysqladapter.Store, interval time.Duration, logger *slog.Logger) {
	if _, err := r.Refresh(ctx, store, store); err != nil {
		logger.Error("initial refresh failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Refresh(ctx, store, store); err != nil {
				logger.Error("scheduled refresh failed", "error", err)
			}
		}
	}
}
