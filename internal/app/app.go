// Package app wires configuration into a ready service for the binaries.
package app

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"

	"forecourt/backend/internal/cache"
	"forecourt/backend/internal/config"
	"forecourt/backend/internal/ingest"
	"forecourt/backend/internal/logging"
	"forecourt/backend/internal/meter"
	"forecourt/backend/internal/service"
	pgstore "forecourt/backend/internal/store/postgres"
	"forecourt/backend/internal/warehouse"
)

type App struct {
	Service *service.Service
	Logger  *logrus.Logger
	Config  config.Config
	closers []func() error
}

// Build connects the report store and the optional cache and warehouse. Only
// the report store is required; Redis and ClickHouse failures fall back to
// noop implementations.
func Build(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Logger: logger, Config: cfg}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres unavailable: %w", err)
	}
	a.closers = append(a.closers, pg.Close)
	logger.Info("report store: postgres")

	svc := service.New(pg, ingest.NewDirectory(cfg.AttendantMap), logger, opts)

	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		snapshots := cache.NewRedisSnapshotCache(client)
		if err := snapshots.Ping(ctx); err != nil {
			logging.LogWarn(logger, "app", "Build", "redis unavailable, using noop cache", err)
			_ = client.Close()
		} else {
			svc.WithCache(snapshots).WithLocker(cache.NewRedisLocker(client))
			a.closers = append(a.closers, client.Close)
			logger.Info("cache: redis")
		}
	} else {
		logger.Info("cache: noop")
	}

	if cfg.ClickHouse.Enabled() {
		sink, err := warehouse.NewClickHouseSink(ctx, cfg.ClickHouse)
		if err != nil {
			logging.LogWarn(logger, "app", "Build", "clickhouse unavailable, daily aggregates not exported", err)
		} else {
			svc.WithSink(sink)
			a.closers = append(a.closers, sink.Close)
			logger.Info("warehouse: clickhouse")
		}
	}

	a.Service = svc
	return a, nil
}

// Options maps configuration onto service options.
func Options(cfg config.Config) (service.Options, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return service.Options{}, fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}
	return service.Options{
		StoreID:        cfg.StoreID,
		PageSize:       cfg.FetchPageSize,
		DashboardTTL:   time.Duration(cfg.DashboardTTLSeconds) * time.Second,
		LockTTL:        time.Duration(cfg.RefreshLockTTLSeconds) * time.Second,
		Location:       loc,
		Calculator:     meter.NewCalculator(cfg.MeterMax, cfg.RolloverThreshold),
		IncludeNonFuel: cfg.VarianceIncludeNonFuel,
	}, nil
}

func (a *App) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			logging.LogWarn(a.Logger, "app", "Close", "close resource", err)
		}
	}
}
