package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"forecourt/backend/internal/app"
	"forecourt/backend/internal/config"
	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/logging"
)

type refresher interface {
	RefreshDashboard(ctx context.Context) (*domain.DashboardSnapshot, error)
}

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	a, err := app.Build(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}
	defer a.Close()

	interval := time.Duration(cfg.RefreshIntervalSeconds) * time.Second
	logger.WithFields(logrus.Fields{"store_id": cfg.StoreID, "interval": interval.String()}).Info("report refresher started")

	run(ctx, a.Service, interval, logger)

	logger.Info("report refresher stopped")
}

// run refreshes once immediately and then on every tick until ctx ends. A
// failed refresh is logged and retried on the next tick.
func run(ctx context.Context, r refresher, interval time.Duration, logger *logrus.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RefreshDashboard(ctx); err != nil && ctx.Err() == nil {
			logging.LogError(logger, "reportd", "run", "refresh dashboard", nil, err)
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
