package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/ingest"
	"forecourt/backend/internal/record"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

const DefaultPageSize = 1000

type Table string

const (
	TableFuelLog        Table = "eod_data"
	TableShop2          Table = "pos2_stock_data"
	TableShop3          Table = "pos3_stock_data"
	TableAudit          Table = "posaud"
	TableSlipItems      Table = "slip_items"
	TableSlipFinancials Table = "slip_financials"
	TableFuelRates      Table = "fuel_rates"
	TableDailyReports   Table = "daily_sales_reports"
)

// TableSpec names the columns a query may touch. Anything else is rejected,
// so table and column names can be spliced into SQL. TieBreaker is a unique
// column ordered last so offset pages stay disjoint when rows share a
// timestamp.
type TableSpec struct {
	DateColumn  string
	TimeColumn  string
	TieBreaker  string
	HasTerminal bool
	Searchable  []string
}

var Tables = map[Table]TableSpec{
	TableFuelLog:        {DateColumn: "s_date", TimeColumn: "s_time", TieBreaker: "id", Searchable: []string{"tagid", "gradeid"}},
	TableShop2:          {DateColumn: "trandate", TimeColumn: "trantime", TieBreaker: "id", Searchable: []string{"userid", "details"}},
	TableShop3:          {DateColumn: "trandate", TimeColumn: "trantime", TieBreaker: "id", Searchable: []string{"userid", "details"}},
	TableAudit:          {DateColumn: "trandate", TimeColumn: "trantime", TieBreaker: "id", Searchable: []string{"userid", "logfile", "details", "code", "trantime", "opref"}},
	TableSlipItems:      {DateColumn: "trandate", TimeColumn: "trantime", TieBreaker: "id", HasTerminal: true, Searchable: []string{"attendant", "item_name", "item_code"}},
	TableSlipFinancials: {DateColumn: "trandate", TimeColumn: "trantime", TieBreaker: "id", HasTerminal: true, Searchable: []string{"userid", "fin_type"}},
	TableFuelRates:      {DateColumn: "start_date", TimeColumn: "created_at", TieBreaker: "id", Searchable: []string{"rate_name"}},
	TableDailyReports:   {DateColumn: "report_date", TieBreaker: "id"},
}

// ShopTable returns the stock log of a shop till.
func ShopTable(terminal int) (Table, bool) {
	switch terminal {
	case domain.TerminalShop2:
		return TableShop2, true
	case domain.TerminalShop3:
		return TableShop3, true
	default:
		return "", false
	}
}

// Filter matches when any of Columns contains Pattern, case-insensitively.
// A pattern ending in "%" is a prefix match instead.
type Filter struct {
	Columns []string
	Pattern string
}

type Query struct {
	Table    Table
	From     time.Time
	To       time.Time
	Terminal int
	Filters  []Filter
	Desc     bool
}

// Validate checks q against the table registry.
func (q Query) Validate() (TableSpec, error) {
	spec, ok := Tables[q.Table]
	if !ok {
		return TableSpec{}, fmt.Errorf("%w: unknown table %q", ErrInvalidInput, q.Table)
	}
	if q.Terminal != 0 && !spec.HasTerminal {
		return TableSpec{}, fmt.Errorf("%w: %s has no terminal column", ErrInvalidInput, q.Table)
	}
	for _, f := range q.Filters {
		if len(f.Columns) == 0 {
			return TableSpec{}, fmt.Errorf("%w: filter without columns", ErrInvalidInput)
		}
		for _, col := range f.Columns {
			if !contains(spec.Searchable, col) {
				return TableSpec{}, fmt.Errorf("%w: %s is not searchable on %s", ErrInvalidInput, col, q.Table)
			}
		}
	}
	return spec, nil
}

// LikePattern turns a filter pattern into an ILIKE operand.
func (f Filter) LikePattern() string {
	p := strings.TrimSpace(f.Pattern)
	if strings.HasSuffix(p, "%") {
		return p
	}
	return "%" + p + "%"
}

// RowSource returns one page of raw records for q.
type RowSource interface {
	FetchPage(ctx context.Context, q Query, offset int, limit int) ([]record.Record, error)
}

type ReportWriter interface {
	UpsertDailyReport(ctx context.Context, report domain.DailySaleReport) error
	InsertFuelRates(ctx context.Context, rates []domain.FuelRate) error
}

type Store interface {
	RowSource
	ReportWriter
}

// FetchAll pages through q until a page comes back shorter than pageSize.
func FetchAll(ctx context.Context, src RowSource, q Query, pageSize int) ([]record.Record, error) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if _, err := q.Validate(); err != nil {
		return nil, err
	}

	var all []record.Record
	for offset := 0; ; offset += pageSize {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		page, err := src.FetchPage(ctx, q, offset, pageSize)
		if err != nil {
			return all, fmt.Errorf("fetch %s at offset %d: %w", q.Table, offset, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// DailyReports reads saved report rows in [from, to] keyed by date.
func DailyReports(ctx context.Context, src RowSource, from time.Time, to time.Time, pageSize int) (map[time.Time]domain.DailySaleReport, error) {
	rows, err := FetchAll(ctx, src, Query{Table: TableDailyReports, From: from, To: to}, pageSize)
	if err != nil {
		return nil, err
	}
	out := make(map[time.Time]domain.DailySaleReport, len(rows))
	for _, rec := range rows {
		report, ok := ingest.DailyReport(rec)
		if !ok {
			continue
		}
		out[report.ReportDate] = report
	}
	return out, nil
}

func DailyReport(ctx context.Context, src RowSource, day time.Time) (*domain.DailySaleReport, error) {
	day = domain.Day(day)
	reports, err := DailyReports(ctx, src, day, day, DefaultPageSize)
	if err != nil {
		return nil, err
	}
	report, ok := reports[day]
	if !ok {
		return nil, ErrNotFound
	}
	return &report, nil
}

// FuelRates reads every rate that starts on or before upTo.
func FuelRates(ctx context.Context, src RowSource, upTo time.Time, pageSize int) ([]domain.FuelRate, error) {
	rows, err := FetchAll(ctx, src, Query{Table: TableFuelRates, To: upTo}, pageSize)
	if err != nil {
		return nil, err
	}
	out := make([]domain.FuelRate, 0, len(rows))
	for _, rec := range rows {
		if rate, ok := ingest.FuelRate(rec); ok {
			out = append(out, rate)
		}
	}
	return out, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
