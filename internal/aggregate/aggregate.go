// Package aggregate folds normalized transaction rows into dashboard totals.
// State lives in an Accumulator built per fold; nothing is shared between
// calls, so the same input and window always give the same snapshot.
package aggregate

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
)

// Resolver maps attendant ids to display names.
type Resolver interface {
	Resolve(id string) string
}

type Input struct {
	Rows        []domain.TransactionRow
	Returns     []domain.ReturnLine
	Adjustments []domain.FinancialAdjustment
}

// txCounter counts distinct slips plus rows that carry no slip id.
type txCounter struct {
	slips map[string]struct{}
	loose int
}

func newTxCounter() *txCounter {
	return &txCounter{slips: make(map[string]struct{})}
}

func (c *txCounter) add(key string) {
	if key == "" {
		c.loose++
		return
	}
	c.slips[key] = struct{}{}
}

func (c *txCounter) merge(other *txCounter) {
	for key := range other.slips {
		c.slips[key] = struct{}{}
	}
	c.loose += other.loose
}

func (c *txCounter) count() int {
	return len(c.slips) + c.loose
}

type staffState struct {
	sales decimal.Decimal
	tx    *txCounter
}

type staffBook map[string]*staffState

func (b staffBook) add(name string, amount decimal.Decimal, slip string) {
	st, ok := b[name]
	if !ok {
		st = &staffState{tx: newTxCounter()}
		b[name] = st
	}
	st.sales = st.sales.Add(amount)
	st.tx.add(slip)
}

func (b staffBook) merge(other staffBook) {
	for name, o := range other {
		st, ok := b[name]
		if !ok {
			st = &staffState{tx: newTxCounter()}
			b[name] = st
		}
		st.sales = st.sales.Add(o.sales)
		st.tx.merge(o.tx)
	}
}

func (b staffBook) list() []domain.StaffPerformance {
	out := make([]domain.StaffPerformance, 0, len(b))
	for name, st := range b {
		out = append(out, domain.StaffPerformance{Attendant: name, Sales: st.sales, Transactions: st.tx.count()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Sales.Equal(out[j].Sales) {
			return out[i].Sales.GreaterThan(out[j].Sales)
		}
		return out[i].Attendant < out[j].Attendant
	})
	return out
}

type totals struct {
	fuel     decimal.Decimal
	diesel   decimal.Decimal
	unleaded decimal.Decimal
	nonFuel  decimal.Decimal
	returns  decimal.Decimal
	vat      decimal.Decimal
}

func (t *totals) merge(o totals) {
	t.fuel = t.fuel.Add(o.fuel)
	t.diesel = t.diesel.Add(o.diesel)
	t.unleaded = t.unleaded.Add(o.unleaded)
	t.nonFuel = t.nonFuel.Add(o.nonFuel)
	t.returns = t.returns.Add(o.returns)
	t.vat = t.vat.Add(o.vat)
}

func (t *totals) addSale(grade domain.Grade, fuel bool, amount decimal.Decimal, vat decimal.Decimal) {
	if fuel {
		t.fuel = t.fuel.Add(amount)
		switch grade {
		case domain.GradeDiesel50:
			t.diesel = t.diesel.Add(amount)
		case domain.GradeUnleaded95:
			t.unleaded = t.unleaded.Add(amount)
		}
	} else {
		t.nonFuel = t.nonFuel.Add(amount)
	}
	t.vat = t.vat.Add(vat)
}

// revenue is always fuel + non-fuel; it is never accumulated separately.
func (t totals) revenue() decimal.Decimal {
	return t.fuel.Add(t.nonFuel)
}

type dayState struct {
	totals
	tx    *txCounter
	staff staffBook
}

func newDayState() *dayState {
	return &dayState{tx: newTxCounter(), staff: make(staffBook)}
}

type Accumulator struct {
	window   domain.Window
	resolver Resolver

	totals
	dieselLitres   decimal.Decimal
	unleadedLitres decimal.Decimal
	adjustments    domain.AdjustmentTotals

	tx        *txCounter
	staff     staffBook
	days      map[time.Time]*dayState
	hourly    map[string]decimal.Decimal
	terminals map[int]decimal.Decimal
}

func NewAccumulator(window domain.Window, resolver Resolver) *Accumulator {
	return &Accumulator{
		window:    window,
		resolver:  resolver,
		tx:        newTxCounter(),
		staff:     make(staffBook),
		days:      make(map[time.Time]*dayState),
		hourly:    make(map[string]decimal.Decimal),
		terminals: make(map[int]decimal.Decimal),
	}
}

func (a *Accumulator) day(d time.Time) *dayState {
	st, ok := a.days[d]
	if !ok {
		st = newDayState()
		a.days[d] = st
	}
	return st
}

func (a *Accumulator) attendant(row domain.TransactionRow) string {
	if row.Attendant != "" {
		return row.Attendant
	}
	if a.resolver == nil {
		return domain.UnknownAttendant
	}
	return a.resolver.Resolve(row.AttendantID)
}

func slipKey(row domain.TransactionRow) string {
	if row.SlipID == "" {
		return ""
	}
	return strconv.Itoa(row.Terminal) + "|" + row.SlipID
}

// Add folds one row. Rows dated outside the window are ignored; rows before
// TotalsFrom only feed their day, and through it the period buckets.
func (a *Accumulator) Add(row domain.TransactionRow) {
	d := domain.Day(row.Date)
	if !a.window.Contains(d) {
		return
	}
	amount := row.Total
	key := slipKey(row)
	name := a.attendant(row)

	day := a.day(d)
	grade, fuel := domain.ClassifyFuel(row.GradeCode, row.ItemName)
	day.addSale(grade, fuel, amount, row.VAT)
	day.tx.add(key)
	day.staff.add(name, amount, key)

	if !a.window.InTotals(d) {
		return
	}
	a.addSale(grade, fuel, amount, row.VAT)
	switch {
	case fuel && grade == domain.GradeDiesel50:
		a.dieselLitres = a.dieselLitres.Add(row.Quantity)
	case fuel && grade == domain.GradeUnleaded95:
		a.unleadedLitres = a.unleadedLitres.Add(row.Quantity)
	}
	a.tx.add(key)
	a.staff.add(name, amount, key)

	if hour := row.Hour(); hour != "" {
		a.hourly[hour] = a.hourly[hour].Add(amount)
	}
	a.terminals[row.Terminal] = a.terminals[row.Terminal].Add(amount)
}

// AddReturn books a free-text return line. Negative amounts are treated as
// zero so returns can only ever reduce net revenue.
func (a *Accumulator) AddReturn(line domain.ReturnLine) {
	d := domain.Day(line.Date)
	if !a.window.Contains(d) || !line.Amount.IsPositive() {
		return
	}
	day := a.day(d)
	day.returns = day.returns.Add(line.Amount)
	if a.window.InTotals(d) {
		a.returns = a.returns.Add(line.Amount)
	}
}

func (a *Accumulator) AddAdjustment(adj domain.FinancialAdjustment) {
	if !a.window.InTotals(domain.Day(adj.Date)) || adj.Amount.IsNegative() {
		return
	}
	a.adjustments.Add(adj.Kind, adj.Amount)
}

func (a *Accumulator) AddAll(in Input) {
	for _, row := range in.Rows {
		a.Add(row)
	}
	for _, line := range in.Returns {
		a.AddReturn(line)
	}
	for _, adj := range in.Adjustments {
		a.AddAdjustment(adj)
	}
}

// Merge adds other's partial state into a. Both must share a window.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	a.totals.merge(other.totals)
	a.dieselLitres = a.dieselLitres.Add(other.dieselLitres)
	a.unleadedLitres = a.unleadedLitres.Add(other.unleadedLitres)
	a.adjustments.Returns = a.adjustments.Returns.Add(other.adjustments.Returns)
	a.adjustments.Payouts = a.adjustments.Payouts.Add(other.adjustments.Payouts)
	a.adjustments.Receipts = a.adjustments.Receipts.Add(other.adjustments.Receipts)
	a.adjustments.Payments = a.adjustments.Payments.Add(other.adjustments.Payments)
	a.tx.merge(other.tx)
	a.staff.merge(other.staff)
	for d, o := range other.days {
		day := a.day(d)
		day.totals.merge(o.totals)
		day.tx.merge(o.tx)
		day.staff.merge(o.staff)
	}
	for hour, v := range other.hourly {
		a.hourly[hour] = a.hourly[hour].Add(v)
	}
	for term, v := range other.terminals {
		a.terminals[term] = a.terminals[term].Add(v)
	}
}

var hundred = decimal.NewFromInt(100)

// Snapshot renders the accumulated state. Every slice is sorted, so equal
// state gives equal output.
func (a *Accumulator) Snapshot() domain.DashboardSnapshot {
	revenue := a.revenue()
	transactions := a.tx.count()

	snap := domain.DashboardSnapshot{
		Window:         a.window,
		FuelTotal:      a.fuel,
		DieselTotal:    a.diesel,
		UnleadedTotal:  a.unleaded,
		DieselLitres:   a.dieselLitres,
		UnleadedLitres: a.unleadedLitres,
		NonFuelTotal:   a.nonFuel,
		Revenue:        revenue,
		Returns:        a.returns,
		NetRevenue:     revenue.Sub(a.returns),
		VAT:            a.vat,
		Transactions:   transactions,
		AvgTransaction: decimal.Zero,
		FuelPercentage: decimal.Zero,
		Adjustments:    a.adjustments,
		Staff:          a.staff.list(),
	}
	if transactions > 0 {
		snap.AvgTransaction = revenue.Div(decimal.NewFromInt(int64(transactions))).Round(2)
	}
	if !revenue.IsZero() {
		snap.FuelPercentage = a.fuel.Div(revenue).Mul(hundred).Round(2)
	}

	dates := make([]time.Time, 0, len(a.days))
	for d := range a.days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, d := range dates {
		day := a.days[d]
		dayRevenue := day.revenue()
		if d.Equal(a.window.Today) {
			snap.Periods.Today = snap.Periods.Today.Add(dayRevenue)
		}
		if a.window.InWeek(d) {
			snap.Periods.Week = snap.Periods.Week.Add(dayRevenue)
		}
		if a.window.InMonth(d) {
			snap.Periods.Month = snap.Periods.Month.Add(dayRevenue)
		}
		if !a.window.InTotals(d) {
			continue
		}

		snap.Days = append(snap.Days, domain.DailyAggregate{
			Date:          d,
			FuelTotal:     day.fuel,
			DieselTotal:   day.diesel,
			UnleadedTotal: day.unleaded,
			NonFuelTotal:  day.nonFuel,
			Revenue:       dayRevenue,
			Returns:       day.returns,
			NetRevenue:    dayRevenue.Sub(day.returns),
			VAT:           day.vat,
			Transactions:  day.tx.count(),
			Staff:         day.staff.list(),
		})
		snap.Daily = append(snap.Daily, domain.TrendPoint{Label: domain.FormatDate(d), Value: dayRevenue})
	}

	hours := make([]string, 0, len(a.hourly))
	for h := range a.hourly {
		hours = append(hours, h)
	}
	sort.Strings(hours)
	for _, h := range hours {
		snap.Hourly = append(snap.Hourly, domain.TrendPoint{Label: h, Value: a.hourly[h]})
	}

	terms := make([]int, 0, len(a.terminals))
	for term := range a.terminals {
		terms = append(terms, term)
	}
	sort.Ints(terms)
	for _, term := range terms {
		snap.Terminals = append(snap.Terminals, domain.TerminalTotal{Terminal: term, Total: a.terminals[term]})
	}

	return snap
}

// Fold aggregates in over window with a fresh accumulator.
func Fold(window domain.Window, resolver Resolver, in Input) domain.DashboardSnapshot {
	acc := NewAccumulator(window, resolver)
	acc.AddAll(in)
	return acc.Snapshot()
}
