package warehouse

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
)

func TestRowsMatchColumnList(t *testing.T) {
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	at := time.Date(2025, 5, 2, 3, 0, 0, 0, time.UTC)
	rows := Rows("s1", []domain.DailyAggregate{{
		Date:         day,
		FuelTotal:    decimal.RequireFromString("1581.60"),
		Revenue:      decimal.RequireFromString("1669.09"),
		Transactions: 5,
		Reconciled:   true,
		OverShort:    decimal.RequireFromString("-12.5"),
	}}, at)

	cols := strings.Split(columnList, ", ")
	if len(rows) != 1 || len(rows[0]) != len(cols) {
		t.Fatalf("expected %d values per row, got %v", len(cols), rows)
	}
	row := rows[0]
	if row[0] != "s1" || row[1] != day {
		t.Fatalf("unexpected key columns %v", row[:2])
	}
	if row[2].(float64) != 1581.60 || row[10].(uint32) != 5 || row[11] != true || row[19].(float64) != -12.5 {
		t.Fatalf("unexpected values %v", row)
	}
	if row[len(row)-1].(uint64) != uint64(at.UnixNano()) {
		t.Fatalf("expected version from write time")
	}
}

func TestNoopSink(t *testing.T) {
	var s Sink = NoopSink{}
	if err := s.WriteDailyAggregates(context.Background(), "s1", []domain.DailyAggregate{{}}); err != nil {
		t.Fatalf("noop sink: %v", err)
	}
}
