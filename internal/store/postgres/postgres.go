package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/ingest"
	"forecourt/backend/internal/record"
	"forecourt/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(12)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// FetchPage builds the statement from the table registry; only values are
// passed as parameters.
func (s *Store) FetchPage(ctx context.Context, q store.Query, offset int, limit int) ([]record.Record, error) {
	stmt, args, err := buildSelect(q, offset, limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, limit)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(record.Record, len(cols))
		for i, col := range cols {
			if values[i] == nil {
				continue
			}
			rec[col] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func buildSelect(q store.Query, offset int, limit int) (string, []any, error) {
	spec, err := q.Validate()
	if err != nil {
		return "", nil, err
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !q.From.IsZero() {
		where = append(where, fmt.Sprintf("%s >= %s", spec.DateColumn, arg(domain.FormatDate(q.From))))
	}
	if !q.To.IsZero() {
		where = append(where, fmt.Sprintf("%s <= %s", spec.DateColumn, arg(domain.FormatDate(q.To))))
	}
	if q.Terminal != 0 {
		where = append(where, fmt.Sprintf("termnum = %s", arg(q.Terminal)))
	}
	for _, f := range q.Filters {
		placeholder := arg(f.LikePattern())
		ors := make([]string, 0, len(f.Columns))
		for _, col := range f.Columns {
			ors = append(ors, fmt.Sprintf("%s::text ILIKE %s", col, placeholder))
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(string(q.Table))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	b.WriteString(fmt.Sprintf(" ORDER BY %s %s", spec.DateColumn, dir))
	if spec.TimeColumn != "" {
		b.WriteString(fmt.Sprintf(", %s %s", spec.TimeColumn, dir))
	}
	if spec.TieBreaker != "" {
		b.WriteString(fmt.Sprintf(", %s %s", spec.TieBreaker, dir))
	}
	b.WriteString(fmt.Sprintf(" OFFSET %s LIMIT %s", arg(offset), arg(limit)))
	return b.String(), args, nil
}

// UpsertDailyReport writes the whole row; the date is the conflict key.
func (s *Store) UpsertDailyReport(ctx context.Context, report domain.DailySaleReport) error {
	if report.ReportDate.IsZero() {
		return store.ErrInvalidInput
	}
	stmt, args := buildUpsert(ingest.ReportColumns(report))
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert daily report %s: %w", domain.FormatDate(report.ReportDate), err)
	}
	return nil
}

func buildUpsert(row record.Record) (string, []any) {
	cols := ingest.ReportColumnNames()
	placeholders := make([]string, 0, len(cols))
	updates := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		args = append(args, row[col])
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		if col != ingest.ColReportDate {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		store.TableDailyReports,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		ingest.ColReportDate,
		strings.Join(updates, ", "),
	)
	return stmt, args
}

func (s *Store) InsertFuelRates(ctx context.Context, rates []domain.FuelRate) error {
	if len(rates) == 0 {
		return nil
	}
	for _, rate := range rates {
		if rate.RateName == "" || rate.StartDate.IsZero() || !rate.Value.IsPositive() {
			return store.ErrInvalidInput
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, rate := range rates {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO fuel_rates (rate_name, start_date, value, created_at)
			VALUES ($1, $2, $3, now())
		`, rate.RateName, domain.FormatDate(rate.StartDate), rate.Value); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: rate %s already starts on %s", store.ErrInvalidInput, rate.RateName, domain.FormatDate(rate.StartDate))
			}
			return err
		}
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
