package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/ingest"
	"forecourt/backend/internal/slips"
	"forecourt/backend/internal/store"
)

func (s *Service) clamp(rawFrom string, rawTo string) (time.Time, time.Time, error) {
	from, to, err := domain.ClampRange(rawFrom, rawTo, s.Today())
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	return from, to, nil
}

// FuelSlips lists POS1 fuel slips for the range.
func (s *Service) FuelSlips(ctx context.Context, rawFrom string, rawTo string) (slips.FuelSlipReport, error) {
	from, to, err := s.clamp(rawFrom, rawTo)
	if err != nil {
		return slips.FuelSlipReport{}, err
	}
	rows, err := s.slipItems(ctx, domain.TerminalFuel, from, to)
	if err != nil {
		return slips.FuelSlipReport{}, err
	}
	return slips.FuelSlips(rows), nil
}

// Receipts lists shop receipts for terminal 2 or 3 with its adjustments.
func (s *Service) Receipts(ctx context.Context, terminal int, rawFrom string, rawTo string) (slips.ReceiptReport, error) {
	if _, ok := store.ShopTable(terminal); !ok {
		return slips.ReceiptReport{}, fmt.Errorf("%w: terminal %d is not a shop till", store.ErrInvalidInput, terminal)
	}
	from, to, err := s.clamp(rawFrom, rawTo)
	if err != nil {
		return slips.ReceiptReport{}, err
	}
	rows, err := s.slipItems(ctx, terminal, from, to)
	if err != nil {
		return slips.ReceiptReport{}, err
	}
	recs, err := s.fetch(ctx, store.Query{Table: store.TableSlipFinancials, From: from, To: to, Terminal: terminal})
	if err != nil {
		return slips.ReceiptReport{}, err
	}
	var adjustments []domain.FinancialAdjustment
	for _, rec := range recs {
		if adj, ok := ingest.Financial(rec); ok {
			adjustments = append(adjustments, adj)
		}
	}
	return slips.Receipts(rows, adjustments), nil
}

// MostSold ranks shop items across both tills by quantity.
func (s *Service) MostSold(ctx context.Context, rawFrom string, rawTo string) ([]slips.ItemTotal, error) {
	from, to, err := s.clamp(rawFrom, rawTo)
	if err != nil {
		return nil, err
	}
	var rows []domain.TransactionRow
	for _, terminal := range []int{domain.TerminalShop2, domain.TerminalShop3} {
		part, err := s.slipItems(ctx, terminal, from, to)
		if err != nil {
			return nil, err
		}
		rows = append(rows, part...)
	}
	return slips.MostSold(rows), nil
}

func (s *Service) ReturnSlips(ctx context.Context, rawFrom string, rawTo string) (slips.ReturnSlipReport, error) {
	from, to, err := s.clamp(rawFrom, rawTo)
	if err != nil {
		return slips.ReturnSlipReport{}, err
	}
	rows, err := s.auditRows(ctx, from, to)
	if err != nil {
		return slips.ReturnSlipReport{}, err
	}
	return slips.ReturnSlips(rows), nil
}

// AuditSlips rebuilds printed slips from the audit log. search, when set,
// keeps only lines whose user, logfile, details, code, time or opref contain
// it.
func (s *Service) AuditSlips(ctx context.Context, rawFrom string, rawTo string, search string) ([]slips.AuditSlip, error) {
	from, to, err := s.clamp(rawFrom, rawTo)
	if err != nil {
		return nil, err
	}
	var filters []store.Filter
	if search = strings.TrimSpace(search); search != "" {
		filters = append(filters, store.Filter{Columns: store.Tables[store.TableAudit].Searchable, Pattern: search})
	}
	rows, err := s.auditRows(ctx, from, to, filters...)
	if err != nil {
		return nil, err
	}
	return slips.AuditSlips(rows, s.parser), nil
}
