package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/cache"
	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/ingest"
	"forecourt/backend/internal/logging"
	"forecourt/backend/internal/record"
	"forecourt/backend/internal/store"
	"forecourt/backend/internal/store/memory"
)

var fixedNow = time.Date(2025, 5, 14, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func money(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %s: %v", raw, err)
	}
	return d
}

func ptr(t *testing.T, raw string) *decimal.Decimal {
	d := money(t, raw)
	return &d
}

func seededStore() *memory.Store {
	st := memory.New()
	st.Insert(store.TableFuelLog,
		record.Record{"s_date": "2025-05-14", "s_time": "06:10:00", "tagid": "94CBA1", "gradeid": "01", "volume": "20", "price": "22.08", "total": "441.60"},
		record.Record{"s_date": "2025-05-14", "s_time": "06:45:00", "tagid": "56BDEF", "gradeid": "02", "volume": "50", "price": "22.80", "total": "1140.00"},
	)
	st.Insert(store.TableSlipItems,
		record.Record{"id": 1, "slip_id": "S100", "termnum": 2, "trandate": "2025-05-14", "trantime": "07:01:00", "attendant": "Sibu", "item_name": "BREAD", "qty": "1", "total_price": "15.00", "vat": "1.96"},
		record.Record{"id": 2, "slip_id": "S100", "termnum": 2, "trandate": "2025-05-14", "trantime": "07:01:00", "attendant": "Sibu", "item_name": "MILK 1L", "qty": "2", "total_price": "18.99", "vat": "2.48"},
		record.Record{"id": 3, "slip_id": "F1", "termnum": 1, "trandate": "2025-05-14", "trantime": "06:10:00", "attendant": "Molapo", "item_name": "UNLEADED 95", "qty": "20", "total_price": "441.60"},
	)
	st.Insert(store.TableSlipFinancials,
		record.Record{"id": 1, "slip_id": "S100", "termnum": 2, "trandate": "2025-05-14", "trantime": "07:02:00", "userid": "Sibu", "fin_type": "PAYOUT", "amount": "5.00"},
	)
	st.Insert(store.TableAudit,
		record.Record{"trandate": "2025-05-14", "trantime": "08:00:00", "userid": "Sibu", "opref": "R1", "details": "MILK 1L 18.99"},
		record.Record{"trandate": "2025-05-14", "trantime": "08:00:01", "userid": "Sibu", "opref": "R1", "details": "REFUND AMOUNT: 10.00"},
	)
	st.Insert(store.TableFuelRates,
		record.Record{"rate_name": "rate_r22_12", "start_date": "2025-05-01", "value": "22.08", "created_at": "2025-05-01T00:00:00Z"},
		record.Record{"rate_name": "rate_r23_36", "start_date": "2025-05-01", "value": "22.80", "created_at": "2025-05-01T00:00:00Z"},
	)
	return st
}

func newTestService(st store.Store) *Service {
	directory := ingest.NewDirectory(map[string]string{"94CBA1": "Molapo", "56BDEF": "Jose"})
	return New(st, directory, logging.Discard(), Options{
		StoreID:      "s1",
		PageSize:     1,
		DashboardTTL: time.Minute,
	}).WithClock(clock)
}

type recordingSink struct {
	mu    sync.Mutex
	calls int
	days  []domain.DailyAggregate
}

func (s *recordingSink) WriteDailyAggregates(_ context.Context, _ string, days []domain.DailyAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.days = append([]domain.DailyAggregate(nil), days...)
	return nil
}

type countingLocker struct {
	mu    sync.Mutex
	calls int
}

func (l *countingLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (cache.Lock, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return cache.NoopLocker{}.Obtain(ctx, key, ttl)
}

// gatedStore blocks the first fuel log fetch until release is closed.
type gatedStore struct {
	*memory.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) FetchPage(ctx context.Context, q store.Query, offset int, limit int) ([]record.Record, error) {
	if q.Table == store.TableFuelLog {
		first := false
		g.once.Do(func() { first = true })
		if first {
			close(g.entered)
			<-g.release
		}
	}
	return g.Store.FetchPage(ctx, q, offset, limit)
}

type heldLocker struct{}

func (heldLocker) Obtain(context.Context, string, time.Duration) (cache.Lock, error) {
	return nil, cache.ErrLockHeld
}

func TestRefreshDashboardTotals(t *testing.T) {
	svc := newTestService(seededStore())

	snap, err := svc.RefreshDashboard(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !snap.FuelTotal.Equal(money(t, "1581.60")) {
		t.Fatalf("expected fuel 1581.60, got %s", snap.FuelTotal)
	}
	if !snap.NonFuelTotal.Equal(money(t, "33.99")) {
		t.Fatalf("expected non-fuel 33.99 without POS1 slip items, got %s", snap.NonFuelTotal)
	}
	if !snap.Returns.Equal(money(t, "10")) {
		t.Fatalf("expected returns 10 from the first-number heuristic, got %s", snap.Returns)
	}
	if snap.Transactions != 3 {
		t.Fatalf("expected 3 transactions, got %d", snap.Transactions)
	}
	if !snap.Adjustments.Payouts.Equal(money(t, "5")) {
		t.Fatalf("expected payouts 5, got %s", snap.Adjustments.Payouts)
	}
	if snap.StoreID != "s1" || !snap.ExpiresAt.Equal(snap.GeneratedAt.Add(time.Minute)) {
		t.Fatalf("unexpected snapshot metadata %s %v %v", snap.StoreID, snap.GeneratedAt, snap.ExpiresAt)
	}
}

func TestDashboardServesCachedSnapshot(t *testing.T) {
	st := seededStore()
	svc := newTestService(st).WithCache(cache.NewMemorySnapshotCache().WithClock(clock))

	first, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	st.Insert(store.TableFuelLog, record.Record{"s_date": "2025-05-14", "s_time": "09:00:00", "gradeid": "01", "volume": "1", "price": "22.08"})

	second, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !second.FuelTotal.Equal(first.FuelTotal) {
		t.Fatalf("expected cached fuel %s, got %s", first.FuelTotal, second.FuelTotal)
	}

	refreshed, err := svc.RefreshDashboard(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !refreshed.FuelTotal.Equal(money(t, "1603.68")) {
		t.Fatalf("expected refresh to pick up the new row, got %s", refreshed.FuelTotal)
	}
}

func TestConcurrentRefreshesShareOneRun(t *testing.T) {
	gated := &gatedStore{Store: seededStore(), entered: make(chan struct{}), release: make(chan struct{})}
	locker := &countingLocker{}
	svc := newTestService(gated).WithLocker(locker)

	results := make(chan *domain.DashboardSnapshot, 2)
	refresh := func() {
		snap, err := svc.RefreshDashboard(context.Background())
		if err != nil {
			t.Errorf("refresh: %v", err)
		}
		results <- snap
	}

	go refresh()
	<-gated.entered
	go refresh()
	time.Sleep(50 * time.Millisecond)
	close(gated.release)

	first, second := <-results, <-results
	if first != second {
		t.Fatalf("expected both callers to receive the same snapshot")
	}
	if locker.calls != 1 {
		t.Fatalf("expected one refresh run, got %d", locker.calls)
	}
}

func TestRefreshFallsBackToCacheWhenLockHeld(t *testing.T) {
	snapshots := cache.NewMemorySnapshotCache().WithClock(clock)
	svc := newTestService(seededStore()).WithCache(snapshots).WithLocker(heldLocker{})

	if _, err := svc.RefreshDashboard(context.Background()); !errors.Is(err, cache.ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld with an empty cache, got %v", err)
	}

	key := cache.DashboardKey("s1", domain.NewWindow(fixedNow))
	if err := snapshots.Set(context.Background(), key, &domain.DashboardSnapshot{StoreID: "elsewhere"}, time.Minute); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	snap, err := svc.RefreshDashboard(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap.StoreID != "elsewhere" {
		t.Fatalf("expected the cached snapshot, got %+v", snap)
	}
}

func TestFetchFailureReadsAsEmpty(t *testing.T) {
	st := seededStore()
	st.FailTable(store.TableFuelLog, errors.New("connection reset"))
	svc := newTestService(st)

	snap, err := svc.RefreshDashboard(context.Background())
	if err != nil {
		t.Fatalf("expected refresh to degrade, got %v", err)
	}
	if !snap.FuelTotal.IsZero() {
		t.Fatalf("expected no fuel from a failing table, got %s", snap.FuelTotal)
	}
	if !snap.NonFuelTotal.Equal(money(t, "33.99")) {
		t.Fatalf("expected other tables to still load, got %s", snap.NonFuelTotal)
	}
}

func TestShopTillFallbackWithoutSlipItems(t *testing.T) {
	st := memory.New()
	st.Insert(store.TableShop2, record.Record{"trandate": "2025-05-14", "trantime": "10:00:00", "userid": "Sibu", "details": "BREAD 1 @ 15.00 15.00", "logfile": "L1"})
	st.Insert(store.TableShop3, record.Record{"trandate": "2025-05-14", "trantime": "10:05:00", "userid": "Sibu", "details": "VOID BREAD 15.00"})
	svc := newTestService(st)

	snap, err := svc.RefreshDashboard(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !snap.NonFuelTotal.Equal(money(t, "15")) || snap.Transactions != 1 {
		t.Fatalf("expected one till line of 15, got %s over %d", snap.NonFuelTotal, snap.Transactions)
	}
}

func TestRefreshWritesAnnotatedDaysToSink(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestService(seededStore()).WithSink(sink)

	if _, err := svc.SaveDailySale(context.Background(), domain.DailySaleEntry{ReportDate: "2025-05-14", Cash: ptr(t, "1500")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.RefreshDashboard(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if sink.calls != 1 || len(sink.days) != 1 {
		t.Fatalf("expected one write of one day, got %d calls %d days", sink.calls, len(sink.days))
	}
	if !sink.days[0].Reconciled || !sink.days[0].Cash.Equal(money(t, "1500")) {
		t.Fatalf("expected the saved report on the day, got %+v", sink.days[0])
	}
}

func TestSaveDailySaleMergesEntries(t *testing.T) {
	svc := newTestService(seededStore())
	ctx := context.Background()

	_, err := svc.SaveDailySale(ctx, domain.DailySaleEntry{
		ReportDate: "2025-05-14",
		ULPOpening: ptr(t, "1000"),
		ULPClosing: ptr(t, "1020"),
		D50Opening: ptr(t, "500"),
		D50Closing: ptr(t, "550"),
		Cash:       ptr(t, "1000"),
	})
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	report, err := svc.SaveDailySale(ctx, domain.DailySaleEntry{ReportDate: "2025-05-14", Cards: ptr(t, "500")})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if !report.Cash.Equal(money(t, "1000")) || !report.Line(domain.GradeUnleaded95).Opening.Equal(money(t, "1000")) {
		t.Fatalf("expected earlier fields to survive, got %+v", report)
	}
	if !report.PumpedTheoretical.Equal(money(t, "1581.60")) {
		t.Fatalf("expected theoretical 1581.60, got %s", report.PumpedTheoretical)
	}
	if !report.ActualPOS.Equal(money(t, "1581.60")) {
		t.Fatalf("expected actual POS to default to POS fuel sales, got %s", report.ActualPOS)
	}
	if !report.ActualSales.Equal(money(t, "1500")) || !report.OverShort.Equal(money(t, "-81.60")) {
		t.Fatalf("unexpected takings %s over/short %s", report.ActualSales, report.OverShort)
	}

	saved, err := store.DailyReport(ctx, svc.store, fixedNow)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !saved.Cards.Equal(money(t, "500")) || !saved.Cash.Equal(money(t, "1000")) {
		t.Fatalf("unexpected persisted row %+v", saved)
	}
}

func TestSaveDailySaleRejectsBadInput(t *testing.T) {
	svc := newTestService(seededStore())

	if _, err := svc.SaveDailySale(context.Background(), domain.DailySaleEntry{ReportDate: "14/05/2025"}); err == nil {
		t.Fatalf("expected malformed date to be rejected")
	}
	if _, err := svc.SaveDailySale(context.Background(), domain.DailySaleEntry{ReportDate: "2025-05-15"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected future date to be rejected, got %v", err)
	}
	if _, err := svc.SaveDailySale(context.Background(), domain.DailySaleEntry{ReportDate: "2025-05-14", Cash: ptr(t, "-1")}); err == nil {
		t.Fatalf("expected negative cash to be rejected")
	}
}

func TestDailySalesReportCoversEveryDate(t *testing.T) {
	svc := newTestService(seededStore())

	reports, err := svc.DailySalesReport(context.Background(), "2025-05-13", "2025-05-20")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected range clamped to today, got %d reports", len(reports))
	}
	blank, today := reports[0], reports[1]
	if blank.Saved || !blank.ActualPOS.IsZero() {
		t.Fatalf("expected an empty unsaved day, got %+v", blank)
	}
	if today.Saved || !today.ActualPOS.Equal(money(t, "1581.60")) {
		t.Fatalf("expected unsaved today with POS fuel sales, got %+v", today)
	}
	line := today.Line(domain.GradeDiesel50)
	if line.RateMissing || !line.Rate.Equal(money(t, "22.80")) {
		t.Fatalf("expected resolved diesel rate, got %+v", line)
	}
}

func TestSaveFuelRates(t *testing.T) {
	svc := newTestService(seededStore())
	ctx := context.Background()

	saved, err := svc.SaveFuelRates(ctx, domain.FuelRateRequest{StartDate: "2025-05-10", D50: ptr(t, "23.36")})
	if err != nil {
		t.Fatalf("save rates: %v", err)
	}
	if len(saved) != 1 || saved[0].RateName != "rate_r23_36" {
		t.Fatalf("expected only the diesel rate, got %+v", saved)
	}

	current, err := svc.CurrentRates(ctx)
	if err != nil {
		t.Fatalf("current rates: %v", err)
	}
	if !current["rate_r23_36"].Equal(money(t, "23.36")) || !current["rate_r22_12"].Equal(money(t, "22.08")) {
		t.Fatalf("unexpected current rates %v", current)
	}

	if _, err := svc.SaveFuelRates(ctx, domain.FuelRateRequest{}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected empty request to be rejected, got %v", err)
	}
}

func TestReceiptsAndDrillDowns(t *testing.T) {
	svc := newTestService(seededStore())
	ctx := context.Background()

	if _, err := svc.Receipts(ctx, domain.TerminalFuel, "", ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected POS1 to be rejected, got %v", err)
	}

	receipts, err := svc.Receipts(ctx, domain.TerminalShop2, "", "")
	if err != nil {
		t.Fatalf("receipts: %v", err)
	}
	if receipts.Transactions != 1 || !receipts.NettTakings.Equal(money(t, "28.99")) {
		t.Fatalf("expected one receipt nett 28.99, got %d %s", receipts.Transactions, receipts.NettTakings)
	}

	fuel, err := svc.FuelSlips(ctx, "", "")
	if err != nil {
		t.Fatalf("fuel slips: %v", err)
	}
	if len(fuel.Slips) != 1 || !fuel.TotalLitres.Equal(money(t, "20")) {
		t.Fatalf("unexpected fuel slips %+v", fuel)
	}

	top, err := svc.MostSold(ctx, "", "")
	if err != nil {
		t.Fatalf("most sold: %v", err)
	}
	if len(top) != 2 || top[0].Name != "MILK 1L" {
		t.Fatalf("expected milk first, got %+v", top)
	}

	returns, err := svc.ReturnSlips(ctx, "", "")
	if err != nil {
		t.Fatalf("return slips: %v", err)
	}
	if len(returns.Rows) != 2 || !returns.Total.Equal(money(t, "10")) {
		t.Fatalf("unexpected return slips %+v", returns)
	}

	audit, err := svc.AuditSlips(ctx, "", "", "r1")
	if err != nil {
		t.Fatalf("audit slips: %v", err)
	}
	if len(audit) != 1 || audit[0].Opref != "R1" {
		t.Fatalf("expected slip R1, got %+v", audit)
	}
}

func TestExportDailySalesCSV(t *testing.T) {
	svc := newTestService(seededStore())

	var buf bytes.Buffer
	if err := svc.ExportDailySales(context.Background(), &buf, "csv", "2025-05-13", "2025-05-14"); err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 || rows[2][0] != "2025-05-14" {
		t.Fatalf("unexpected export %v", rows)
	}

	if err := svc.ExportDailySales(context.Background(), &buf, "pdf", "", ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected unknown format to be rejected, got %v", err)
	}
}

func TestDashboardWeekReachesIntoPreviousMonth(t *testing.T) {
	st := memory.New()
	st.Insert(store.TableFuelLog,
		record.Record{"s_date": "2026-09-28", "s_time": "08:00:00", "gradeid": "01", "volume": "4", "total": "100.00"},
		record.Record{"s_date": "2026-10-01", "s_time": "09:00:00", "gradeid": "01", "volume": "2", "total": "50.00"},
	)
	svc := newTestService(st).WithClock(func() time.Time { return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC) })

	snap, err := svc.RefreshDashboard(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !snap.Periods.Week.Equal(money(t, "150")) {
		t.Fatalf("expected week 150 including Monday 2026-09-28, got %s", snap.Periods.Week)
	}
	if !snap.Periods.Month.Equal(money(t, "50")) || !snap.FuelTotal.Equal(money(t, "50")) {
		t.Fatalf("expected month-to-date 50, got month %s fuel %s", snap.Periods.Month, snap.FuelTotal)
	}
}
