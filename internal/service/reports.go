package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/export"
	"forecourt/backend/internal/logging"
	"forecourt/backend/internal/meter"
	"forecourt/backend/internal/rates"
	"forecourt/backend/internal/reconcile"
	"forecourt/backend/internal/store"
)

func (s *Service) rateBook(ctx context.Context, upTo time.Time) (*rates.Book, error) {
	history, err := store.FuelRates(ctx, s.store, upTo, s.opts.PageSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.LogWarn(s.logger, moduleName, "rateBook", "load fuel rates", err)
	}
	return rates.NewBook(history), nil
}

// daySales folds [from, to] and indexes the per-day aggregates by date.
func (s *Service) daySales(ctx context.Context, from time.Time, to time.Time) (map[time.Time]domain.DailyAggregate, error) {
	snap, err := s.build(ctx, domain.NewWindow(to).WithRange(from, to))
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time]domain.DailyAggregate, len(snap.Days))
	for _, d := range snap.Days {
		out[d.Date] = d
	}
	return out, nil
}

// DailySalesReport returns one reconciled report per date in the clamped
// range, ascending. Dates nobody saved are computed from sales alone.
func (s *Service) DailySalesReport(ctx context.Context, rawFrom string, rawTo string) ([]domain.DailySaleReport, error) {
	from, to, err := domain.ClampRange(rawFrom, rawTo, s.Today())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	r, err := s.reconciler(ctx, to)
	if err != nil {
		return nil, err
	}
	sales, err := s.daySales(ctx, from, to)
	if err != nil {
		return nil, err
	}
	saved, err := store.DailyReports(ctx, s.store, from, to, s.opts.PageSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.LogWarn(s.logger, moduleName, "DailySalesReport", "load daily reports", err)
	}

	days := domain.DaysBetween(from, to)
	out := make([]domain.DailySaleReport, 0, len(days))
	for _, day := range days {
		var existing *domain.DailySaleReport
		if report, ok := saved[day]; ok {
			existing = &report
		}
		out = append(out, r.Day(day, existing, sales[day]))
	}
	return out, nil
}

// SaveDailySale merges entry over the saved row for its date and upserts the
// result. Fields the entry leaves nil keep their saved values.
func (s *Service) SaveDailySale(ctx context.Context, entry domain.DailySaleEntry) (domain.DailySaleReport, error) {
	if err := reconcile.ValidateEntry(entry); err != nil {
		return domain.DailySaleReport{}, err
	}
	day, err := domain.ParseDate(entry.ReportDate)
	if err != nil {
		return domain.DailySaleReport{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if day.After(s.Today()) {
		return domain.DailySaleReport{}, fmt.Errorf("%w: %s is in the future", store.ErrInvalidInput, entry.ReportDate)
	}

	existing, err := store.DailyReport(ctx, s.store, day)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.DailySaleReport{}, fmt.Errorf("load saved report: %w", err)
	}

	r, err := s.reconciler(ctx, day)
	if err != nil {
		return domain.DailySaleReport{}, err
	}
	sales, err := s.daySales(ctx, day, day)
	if err != nil {
		return domain.DailySaleReport{}, err
	}

	report, err := r.Merge(existing, entry, sales[day])
	if err != nil {
		return domain.DailySaleReport{}, err
	}
	if err := s.store.UpsertDailyReport(ctx, report); err != nil {
		logging.LogError(s.logger, moduleName, "SaveDailySale", "upsert daily report", entry, err)
		return domain.DailySaleReport{}, err
	}
	return report, nil
}

// SaveFuelRates records new rates from the request's start date, today when
// empty. At least one grade must be given.
func (s *Service) SaveFuelRates(ctx context.Context, req domain.FuelRateRequest) ([]domain.FuelRate, error) {
	if err := reconcile.ValidateEntry(req); err != nil {
		return nil, err
	}
	start := s.Today()
	if req.StartDate != "" {
		parsed, err := domain.ParseDate(req.StartDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
		}
		start = parsed
	}

	now := s.now().UTC()
	values := map[domain.Grade]*decimal.Decimal{
		domain.GradeUnleaded95: req.ULP,
		domain.GradeDiesel50:   req.D50,
	}
	var out []domain.FuelRate
	for _, info := range domain.Grades {
		value := values[info.Grade]
		if value == nil {
			continue
		}
		out = append(out, domain.FuelRate{
			RateName:  info.RateName,
			StartDate: start,
			Value:     *value,
			CreatedAt: now,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no rate provided", store.ErrInvalidInput)
	}

	if err := s.store.InsertFuelRates(ctx, out); err != nil {
		logging.LogError(s.logger, moduleName, "SaveFuelRates", "insert fuel rates", req, err)
		return nil, err
	}
	return out, nil
}

// CurrentRates maps each rate name to the value in force today.
func (s *Service) CurrentRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	today := s.Today()
	book, err := s.rateBook(ctx, today)
	if err != nil {
		return nil, err
	}
	return book.Current(today), nil
}

// Totalisers reads pump totaliser readings printed on the audit log for a
// date. They pre-fill closing meter readings.
func (s *Service) Totalisers(ctx context.Context, rawDay string) (map[domain.Grade]decimal.Decimal, error) {
	day, _, err := domain.ClampRange(rawDay, rawDay, s.Today())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	rows, err := s.auditRows(ctx, day, day)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, row.Details)
	}
	return meter.ParseTotaliser(lines), nil
}

// ExportDailySales writes the daily sales report for the range as csv or xlsx.
func (s *Service) ExportDailySales(ctx context.Context, w io.Writer, format string, rawFrom string, rawTo string) error {
	write, err := export.Format(format)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	reports, err := s.DailySalesReport(ctx, rawFrom, rawTo)
	if err != nil {
		return err
	}
	return write(w, reports)
}
