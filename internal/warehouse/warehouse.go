// Package warehouse ships reconciled day aggregates to the analytics store.
package warehouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"forecourt/backend/internal/config"
	"forecourt/backend/internal/domain"
)

type Sink interface {
	WriteDailyAggregates(ctx context.Context, storeID string, days []domain.DailyAggregate) error
}

type NoopSink struct{}

func (NoopSink) WriteDailyAggregates(context.Context, string, []domain.DailyAggregate) error {
	return nil
}

type ClickHouseSink struct {
	conn     driver.Conn
	database string
	now      func() time.Time
}

func NewClickHouseSink(ctx context.Context, cfg config.ClickHouseConfig) (*ClickHouseSink, error) {
	opts := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		DialTimeout:  10 * time.Second,
	}
	if cfg.Port == 8443 {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseSink{conn: conn, database: cfg.Database, now: time.Now}, nil
}

func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}

// WriteDailyAggregates appends one versioned row per day. The table is a
// ReplacingMergeTree on (store_id, report_date) so re-runs supersede.
func (s *ClickHouseSink) WriteDailyAggregates(ctx context.Context, storeID string, days []domain.DailyAggregate) error {
	if len(days) == 0 {
		return nil
	}
	batch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s.daily_sales (%s)", s.database, columnList))
	if err != nil {
		return fmt.Errorf("prepare daily_sales batch: %w", err)
	}
	for _, row := range Rows(storeID, days, s.now().UTC()) {
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("append daily_sales row: %w", err)
		}
	}
	return batch.Send()
}

const columnList = "store_id, report_date, fuel_total, diesel_total, unleaded_total, nonfuel_total, " +
	"revenue, returns, net_revenue, vat, transactions, reconciled, theoretical_litres, " +
	"theoretical_value, actual_pos, variance_pos, cash, cards, actual_sales, over_short, _version"

// Rows converts aggregates to column values in columnList order. Money is
// sent as Float64.
func Rows(storeID string, days []domain.DailyAggregate, at time.Time) [][]any {
	version := uint64(at.UnixNano())
	out := make([][]any, 0, len(days))
	for _, d := range days {
		out = append(out, []any{
			storeID,
			d.Date,
			f(d.FuelTotal),
			f(d.DieselTotal),
			f(d.UnleadedTotal),
			f(d.NonFuelTotal),
			f(d.Revenue),
			f(d.Returns),
			f(d.NetRevenue),
			f(d.VAT),
			uint32(d.Transactions),
			d.Reconciled,
			f(d.TheoreticalLitres),
			f(d.TheoreticalValue),
			f(d.ActualPOS),
			f(d.VariancePOS),
			f(d.Cash),
			f(d.Cards),
			f(d.ActualSales),
			f(d.OverShort),
			version,
		})
	}
	return out
}

func f(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}
