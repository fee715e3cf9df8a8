package cache

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
)

func TestMemorySnapshotCacheHonoursExpiry(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	c := NewMemorySnapshotCache().WithClock(func() time.Time { return now })
	ctx := context.Background()

	snap := &domain.DashboardSnapshot{StoreID: "s1", Revenue: decimal.NewFromInt(10)}
	if err := c.Set(ctx, "k", snap, 5*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	now = now.Add(4 * time.Minute)
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || !got.Revenue.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected hit before expiry, got %v %v %v", got, ok, err)
	}

	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected miss at expiry")
	}
}

func TestMemorySnapshotCacheReplacesWholesale(t *testing.T) {
	c := NewMemorySnapshotCache()
	ctx := context.Background()
	_ = c.Set(ctx, "k", &domain.DashboardSnapshot{StoreID: "first", Transactions: 3}, time.Minute)
	_ = c.Set(ctx, "k", &domain.DashboardSnapshot{StoreID: "second"}, time.Minute)

	got, ok, _ := c.Get(ctx, "k")
	if !ok || got.StoreID != "second" || got.Transactions != 0 {
		t.Fatalf("expected second snapshot only, got %+v", got)
	}

	got.StoreID = "mutated"
	again, _, _ := c.Get(ctx, "k")
	if again.StoreID != "second" {
		t.Fatalf("expected cached value unaffected by caller mutation")
	}
}

func TestMemorySnapshotCacheCopiesNestedSlices(t *testing.T) {
	c := NewMemorySnapshotCache()
	ctx := context.Background()
	snap := &domain.DashboardSnapshot{
		Staff: []domain.StaffPerformance{{Attendant: "Sibu", Transactions: 2}},
		Days: []domain.DailyAggregate{{
			Transactions: 2,
			Staff:        []domain.StaffPerformance{{Attendant: "Sibu", Transactions: 2}},
		}},
		Terminals: []domain.TerminalTotal{{Terminal: 2, Total: decimal.NewFromInt(30)}},
	}
	_ = c.Set(ctx, "k", snap, time.Minute)
	snap.Staff[0].Attendant = "changed before read"

	got, ok, _ := c.Get(ctx, "k")
	if !ok || got.Staff[0].Attendant != "Sibu" {
		t.Fatalf("expected stored staff unaffected by the writer, got %+v", got.Staff)
	}
	got.Staff[0].Attendant = "Jose"
	got.Days[0].Staff[0].Transactions = 99
	got.Days[0].Transactions = 99
	got.Terminals[0].Terminal = 3

	again, _, _ := c.Get(ctx, "k")
	if again.Staff[0].Attendant != "Sibu" || again.Terminals[0].Terminal != 2 {
		t.Fatalf("expected top-level slices unaffected by caller mutation, got %+v", again)
	}
	if again.Days[0].Transactions != 2 || again.Days[0].Staff[0].Transactions != 2 {
		t.Fatalf("expected per-day values unaffected by caller mutation, got %+v", again.Days)
	}
}

func TestMemorySnapshotCacheIgnoresNilAndZeroTTL(t *testing.T) {
	c := NewMemorySnapshotCache()
	ctx := context.Background()
	_ = c.Set(ctx, "nil", nil, time.Minute)
	_ = c.Set(ctx, "zero", &domain.DashboardSnapshot{}, 0)
	if _, ok, _ := c.Get(ctx, "nil"); ok {
		t.Fatalf("expected nil value not stored")
	}
	if _, ok, _ := c.Get(ctx, "zero"); ok {
		t.Fatalf("expected zero ttl not stored")
	}
}

func TestNoopImplementations(t *testing.T) {
	ctx := context.Background()
	var c SnapshotCache = NoopSnapshotCache{}
	_ = c.Set(ctx, "k", &domain.DashboardSnapshot{}, time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("noop cache must always miss")
	}

	var l Locker = NoopLocker{}
	lock, err := l.Obtain(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("noop locker: %v", err)
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("noop release: %v", err)
	}
}

func TestDashboardKeyVariesByWindow(t *testing.T) {
	a := domain.NewWindow(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	b := domain.NewWindow(time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC))
	if DashboardKey("s1", a) == DashboardKey("s1", b) {
		t.Fatalf("expected different keys for different windows")
	}
	if DashboardKey("s1", a) != DashboardKey("s1", a) {
		t.Fatalf("expected stable key")
	}
}
