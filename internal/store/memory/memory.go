package memory

import (
	"cmp"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/ingest"
	"forecourt/backend/internal/record"
	"forecourt/backend/internal/store"
)

// Store keeps every table in process. It is used by the tests and for local
// runs without a database.
type Store struct {
	mu       sync.RWMutex
	tables   map[store.Table][]record.Record
	failures map[store.Table]error
}

func New() *Store {
	return &Store{
		tables:   make(map[store.Table][]record.Record),
		failures: make(map[store.Table]error),
	}
}

// Insert appends raw rows to table. Records are copied.
func (s *Store) Insert(table store.Table, rows ...record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.tables[table] = append(s.tables[table], copyRecord(row))
	}
}

// FailTable makes every fetch from table return err until cleared with nil.
func (s *Store) FailTable(table store.Table, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, table)
		return
	}
	s.failures[table] = err
}

func (s *Store) FetchPage(ctx context.Context, q store.Query, offset int, limit int) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spec, err := q.Validate()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failures[q.Table]; err != nil {
		return nil, err
	}

	matched := make([]record.Record, 0)
	for _, row := range s.tables[q.Table] {
		if matches(row, q, spec) {
			matched = append(matched, row)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		c := compareRows(matched[i], matched[j], spec)
		if q.Desc {
			return c > 0
		}
		return c < 0
	})

	if offset >= len(matched) {
		return []record.Record{}, nil
	}
	end := offset + limit
	if limit < 1 || end > len(matched) {
		end = len(matched)
	}
	out := make([]record.Record, 0, end-offset)
	for _, row := range matched[offset:end] {
		out = append(out, copyRecord(row))
	}
	return out, nil
}

// UpsertDailyReport replaces the row for the report's date.
func (s *Store) UpsertDailyReport(ctx context.Context, report domain.DailySaleReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if report.ReportDate.IsZero() {
		return store.ErrInvalidInput
	}
	row := ingest.ReportColumns(report)
	key := domain.FormatDate(report.ReportDate)

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.tables[store.TableDailyReports]
	for i, existing := range rows {
		if d, ok := existing.Date(ingest.ColReportDate); ok && domain.FormatDate(d) == key {
			rows[i] = row
			return nil
		}
	}
	s.tables[store.TableDailyReports] = append(rows, row)
	return nil
}

func (s *Store) InsertFuelRates(ctx context.Context, rates []domain.FuelRate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rate := range rates {
		if rate.RateName == "" || rate.StartDate.IsZero() || !rate.Value.IsPositive() {
			return store.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rate := range rates {
		createdAt := rate.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		s.tables[store.TableFuelRates] = append(s.tables[store.TableFuelRates], record.Record{
			"rate_name":  rate.RateName,
			"start_date": domain.FormatDate(rate.StartDate),
			"value":      rate.Value.String(),
			"created_at": createdAt,
		})
	}
	return nil
}

func matches(row record.Record, q store.Query, spec store.TableSpec) bool {
	if !q.From.IsZero() || !q.To.IsZero() {
		d, ok := row.Date(spec.DateColumn)
		if !ok {
			return false
		}
		if !q.From.IsZero() && d.Before(domain.Day(q.From)) {
			return false
		}
		if !q.To.IsZero() && d.After(domain.Day(q.To)) {
			return false
		}
	}
	if q.Terminal != 0 {
		term, ok := row.Int("termnum")
		if !ok || term != q.Terminal {
			return false
		}
	}
	for _, f := range q.Filters {
		if !matchFilter(row, f) {
			return false
		}
	}
	return true
}

func matchFilter(row record.Record, f store.Filter) bool {
	pattern := strings.ToLower(strings.TrimSpace(f.Pattern))
	prefix := strings.HasSuffix(pattern, "%")
	pattern = strings.Trim(pattern, "%")
	for _, col := range f.Columns {
		v := strings.ToLower(row.String(col))
		if prefix && strings.HasPrefix(v, pattern) {
			return true
		}
		if !prefix && strings.Contains(v, pattern) {
			return true
		}
	}
	return false
}

func sortKey(row record.Record, spec store.TableSpec) string {
	key := ""
	if d, ok := row.Date(spec.DateColumn); ok {
		key = domain.FormatDate(d)
	}
	if spec.TimeColumn != "" {
		key += " " + row.String(spec.TimeColumn)
	}
	return key
}

// compareRows orders by date and time, then by the numeric tiebreaker.
// Rows without one keep insertion order.
func compareRows(a, b record.Record, spec store.TableSpec) int {
	if c := strings.Compare(sortKey(a, spec), sortKey(b, spec)); c != 0 {
		return c
	}
	if spec.TieBreaker == "" {
		return 0
	}
	x, okA := a.Int(spec.TieBreaker)
	y, okB := b.Int(spec.TieBreaker)
	if !okA || !okB {
		return 0
	}
	return cmp.Compare(x, y)
}

func copyRecord(row record.Record) record.Record {
	out := make(record.Record, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
