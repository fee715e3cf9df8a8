package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"forecourt/backend/internal/aggregate"
	"forecourt/backend/internal/cache"
	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/ingest"
	"forecourt/backend/internal/logging"
	"forecourt/backend/internal/meter"
	"forecourt/backend/internal/parser"
	"forecourt/backend/internal/reconcile"
	"forecourt/backend/internal/store"
	"forecourt/backend/internal/warehouse"
	"forecourt/backend/internal/xid"
)

const moduleName = "service"

type Options struct {
	StoreID        string
	PageSize       int
	DashboardTTL   time.Duration
	LockTTL        time.Duration
	Location       *time.Location
	Calculator     meter.Calculator
	IncludeNonFuel bool
	Shards         int
}

type Service struct {
	store     store.Store
	cache     cache.SnapshotCache
	locker    cache.Locker
	sink      warehouse.Sink
	directory *ingest.Directory
	parser    *parser.Parser
	logger    *logrus.Logger
	opts      Options
	now       func() time.Time
	flight    singleflight.Group
}

func New(st store.Store, directory *ingest.Directory, logger *logrus.Logger, opts Options) *Service {
	if opts.StoreID == "" {
		opts.StoreID = "main-store"
	}
	if opts.PageSize < 1 {
		opts.PageSize = store.DefaultPageSize
	}
	if opts.DashboardTTL <= 0 {
		opts.DashboardTTL = 5 * time.Minute
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 2 * time.Minute
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Calculator.Max.IsZero() {
		opts.Calculator = meter.NewCalculator(0, 0)
	}
	if opts.Shards < 1 {
		opts.Shards = 4
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Service{
		store:     st,
		cache:     cache.NoopSnapshotCache{},
		locker:    cache.NoopLocker{},
		sink:      warehouse.NoopSink{},
		directory: directory,
		parser:    parser.New(),
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

func (s *Service) WithCache(c cache.SnapshotCache) *Service {
	if c != nil {
		s.cache = c
	}
	return s
}

func (s *Service) WithLocker(l cache.Locker) *Service {
	if l != nil {
		s.locker = l
	}
	return s
}

func (s *Service) WithSink(sink warehouse.Sink) *Service {
	if sink != nil {
		s.sink = sink
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Today is the current calendar date in the station's timezone.
func (s *Service) Today() time.Time {
	return domain.Day(s.now().In(s.opts.Location))
}

func (s *Service) reconciler(ctx context.Context, upTo time.Time) (*reconcile.Reconciler, error) {
	book, err := s.rateBook(ctx, upTo)
	if err != nil {
		return nil, err
	}
	return reconcile.New(book, reconcile.Options{
		Calculator:     s.opts.Calculator,
		IncludeNonFuel: s.opts.IncludeNonFuel,
	}), nil
}

// Dashboard returns the cached month-to-date snapshot, refreshing on a miss.
func (s *Service) Dashboard(ctx context.Context) (*domain.DashboardSnapshot, error) {
	window := domain.NewWindow(s.Today())
	key := cache.DashboardKey(s.opts.StoreID, window)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logging.LogWarn(s.logger, moduleName, "Dashboard", "cache get "+key, err)
	}
	if ok {
		return cached, nil
	}
	return s.RefreshDashboard(ctx)
}

// RefreshDashboard rebuilds the month-to-date snapshot and replaces the cached
// copy. Concurrent calls for the same window share one run; when another
// process holds the refresh lock the cached snapshot is returned instead.
func (s *Service) RefreshDashboard(ctx context.Context) (*domain.DashboardSnapshot, error) {
	window := domain.NewWindow(s.Today())
	key := cache.DashboardKey(s.opts.StoreID, window)

	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.refresh(ctx, window, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.DashboardSnapshot), nil
}

func (s *Service) refresh(ctx context.Context, window domain.Window, key string) (*domain.DashboardSnapshot, error) {
	lock, err := s.locker.Obtain(ctx, key, s.opts.LockTTL)
	switch {
	case errors.Is(err, cache.ErrLockHeld):
		cached, ok, getErr := s.cache.Get(ctx, key)
		if getErr == nil && ok {
			return cached, nil
		}
		return nil, err
	case err != nil:
		logging.LogWarn(s.logger, moduleName, "refresh", "obtain lock "+key, err)
	default:
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				logging.LogWarn(s.logger, moduleName, "refresh", "release lock "+key, err)
			}
		}()
	}

	runID := xid.New("refresh")
	started := s.now()

	snap, err := s.build(ctx, window)
	if err != nil {
		return nil, err
	}

	snap.GeneratedAt = s.now().UTC()
	snap.ExpiresAt = snap.GeneratedAt.Add(s.opts.DashboardTTL)

	if err := s.cache.Set(ctx, key, &snap, s.opts.DashboardTTL); err != nil {
		logging.LogWarn(s.logger, moduleName, "refresh", "cache set "+key, err)
	}
	if err := s.sink.WriteDailyAggregates(ctx, s.opts.StoreID, snap.Days); err != nil {
		logging.LogWarn(s.logger, moduleName, "refresh", "write daily aggregates", err)
	}

	s.logger.WithFields(logrus.Fields{
		"module":       moduleName,
		"run_id":       runID,
		"window":       window.Key(),
		"transactions": snap.Transactions,
		"days":         len(snap.Days),
		"duration_ms":  s.now().Sub(started).Milliseconds(),
	}).Info("dashboard refreshed")

	return &snap, nil
}

// Summary folds an arbitrary closed date range. It is never cached.
func (s *Service) Summary(ctx context.Context, rawFrom string, rawTo string) (domain.DashboardSnapshot, error) {
	today := s.Today()
	from, to, err := domain.ClampRange(rawFrom, rawTo, today)
	if err != nil {
		return domain.DashboardSnapshot{}, err
	}
	snap, err := s.build(ctx, domain.NewWindow(today).WithRange(from, to))
	if err != nil {
		return domain.DashboardSnapshot{}, err
	}
	snap.StoreID = s.opts.StoreID
	snap.GeneratedAt = s.now().UTC()
	return snap, nil
}

// build loads every source for window, folds it and annotates the days that
// have a saved daily report.
func (s *Service) build(ctx context.Context, window domain.Window) (domain.DashboardSnapshot, error) {
	input, err := s.loadInput(ctx, window.From, window.To)
	if err != nil {
		return domain.DashboardSnapshot{}, err
	}
	snap, err := aggregate.FoldSharded(ctx, window, s.directory, input, s.opts.Shards)
	if err != nil {
		return domain.DashboardSnapshot{}, err
	}
	snap.StoreID = s.opts.StoreID

	reports, err := store.DailyReports(ctx, s.store, window.From, window.To, s.opts.PageSize)
	if err != nil {
		if ctx.Err() != nil {
			return domain.DashboardSnapshot{}, ctx.Err()
		}
		logging.LogWarn(s.logger, moduleName, "build", "load daily reports", err)
	}
	for i := range snap.Days {
		if report, ok := reports[snap.Days[i].Date]; ok {
			reconcile.Annotate(&snap.Days[i], report)
		}
	}
	return snap, nil
}
