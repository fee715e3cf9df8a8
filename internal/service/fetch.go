package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"forecourt/backend/internal/aggregate"
	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/ingest"
	"forecourt/backend/internal/logging"
	"forecourt/backend/internal/record"
	"forecourt/backend/internal/store"
)

// fetch pages q to the end. A failing table is logged and read as empty; only
// cancellation is returned.
func (s *Service) fetch(ctx context.Context, q store.Query) ([]record.Record, error) {
	rows, err := store.FetchAll(ctx, s.store, q, s.opts.PageSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.LogWarn(s.logger, moduleName, "fetch", string(q.Table), err)
		return nil, nil
	}
	return rows, nil
}

// loadInput reads every aggregator source for [from, to] concurrently. Shop
// lines come from slip_items; stations without slip capture fall back to the
// raw POS2/POS3 stock logs.
func (s *Service) loadInput(ctx context.Context, from time.Time, to time.Time) (aggregate.Input, error) {
	var fuel, items, shop2, shop3, financials, audit []record.Record

	g, gctx := errgroup.WithContext(ctx)
	load := func(dst *[]record.Record, q store.Query) {
		g.Go(func() error {
			rows, err := s.fetch(gctx, q)
			*dst = rows
			return err
		})
	}
	load(&fuel, store.Query{Table: store.TableFuelLog, From: from, To: to})
	load(&items, store.Query{Table: store.TableSlipItems, From: from, To: to})
	load(&financials, store.Query{Table: store.TableSlipFinancials, From: from, To: to})
	// RETURN and REFUND both contain "re"; AuditReturn does the exact match.
	load(&audit, store.Query{Table: store.TableAudit, From: from, To: to, Filters: []store.Filter{
		{Columns: []string{"details"}, Pattern: "re"},
	}})
	if err := g.Wait(); err != nil {
		return aggregate.Input{}, err
	}

	var in aggregate.Input
	for _, rec := range fuel {
		if row, ok := ingest.FuelLog(rec); ok {
			in.Rows = append(in.Rows, row)
		}
	}

	shopRows := 0
	for _, rec := range items {
		row, ok := ingest.SlipItem(rec)
		if !ok || row.Terminal == domain.TerminalFuel {
			continue
		}
		in.Rows = append(in.Rows, row)
		shopRows++
	}
	if shopRows == 0 {
		g, gctx = errgroup.WithContext(ctx)
		load(&shop2, store.Query{Table: store.TableShop2, From: from, To: to})
		load(&shop3, store.Query{Table: store.TableShop3, From: from, To: to})
		if err := g.Wait(); err != nil {
			return aggregate.Input{}, err
		}
		in.Rows = append(in.Rows, tillRows(shop2, domain.TerminalShop2)...)
		in.Rows = append(in.Rows, tillRows(shop3, domain.TerminalShop3)...)
	}

	for _, rec := range financials {
		if adj, ok := ingest.Financial(rec); ok {
			in.Adjustments = append(in.Adjustments, adj)
		}
	}
	for _, rec := range audit {
		if line, ok := ingest.AuditReturn(rec); ok {
			in.Returns = append(in.Returns, line)
		}
	}
	return in, nil
}

func tillRows(recs []record.Record, terminal int) []domain.TransactionRow {
	out := make([]domain.TransactionRow, 0, len(recs))
	for _, rec := range recs {
		if row, ok := ingest.ShopTill(rec, terminal); ok {
			out = append(out, row)
		}
	}
	return out
}

func (s *Service) slipItems(ctx context.Context, terminal int, from time.Time, to time.Time) ([]domain.TransactionRow, error) {
	recs, err := s.fetch(ctx, store.Query{Table: store.TableSlipItems, From: from, To: to, Terminal: terminal})
	if err != nil {
		return nil, err
	}
	out := make([]domain.TransactionRow, 0, len(recs))
	for _, rec := range recs {
		if row, ok := ingest.SlipItem(rec); ok {
			if row.Attendant == "" {
				row.Attendant = s.directory.Resolve(row.AttendantID)
			}
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *Service) auditRows(ctx context.Context, from time.Time, to time.Time, filters ...store.Filter) ([]domain.AuditRow, error) {
	recs, err := s.fetch(ctx, store.Query{Table: store.TableAudit, From: from, To: to, Filters: filters})
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditRow, 0, len(recs))
	for _, rec := range recs {
		if row, ok := ingest.Audit(rec); ok {
			out = append(out, row)
		}
	}
	return out, nil
}
