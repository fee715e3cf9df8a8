package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TerminalFuel  = 1
	TerminalShop2 = 2
	TerminalShop3 = 3
)

// Fallback labels for rows that carry no attendant tag or item name.
const (
	UnknownAttendant = "Unknown"
	UnknownItem      = "Unknown item"
)

// TransactionRow is one normalized line item from a till or the fuel log.
// Rows sharing Terminal and SlipID belong to one receipt. An empty SlipID
// means the row is its own transaction.
type TransactionRow struct {
	Terminal    int             `json:"terminal"`
	Date        time.Time       `json:"date"`
	Time        string          `json:"time"`
	AttendantID string          `json:"attendant_id"`
	Attendant   string          `json:"attendant"`
	ItemName    string          `json:"item_name"`
	ItemCode    string          `json:"item_code,omitempty"`
	GradeCode   string          `json:"grade_code,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	VAT         decimal.Decimal `json:"vat"`
	SlipID      string          `json:"slip_id,omitempty"`
}

// Hour returns the two-digit hour prefix of Time, or "" when unknown.
func (r TransactionRow) Hour() string {
	if len(r.Time) < 2 {
		return ""
	}
	return r.Time[:2]
}

// ReturnLine is a free-text audit line carrying a return/refund keyword.
type ReturnLine struct {
	Date    time.Time       `json:"date"`
	SlipID  string          `json:"slip_id,omitempty"`
	Details string          `json:"details"`
	Amount  decimal.Decimal `json:"amount"`
}

type AdjustmentKind string

const (
	AdjustmentReturn  AdjustmentKind = "RETURN"
	AdjustmentPayout  AdjustmentKind = "PAYOUT"
	AdjustmentReceipt AdjustmentKind = "RECEIPT"
	AdjustmentPayment AdjustmentKind = "PAYMENT"
)

// ParseAdjustmentKind reports false for anything outside the closed set.
func ParseAdjustmentKind(raw string) (AdjustmentKind, bool) {
	switch kind := AdjustmentKind(raw); kind {
	case AdjustmentReturn, AdjustmentPayout, AdjustmentReceipt, AdjustmentPayment:
		return kind, true
	default:
		return "", false
	}
}

type FinancialAdjustment struct {
	SlipID   string          `json:"slip_id"`
	Terminal int             `json:"terminal"`
	Date     time.Time       `json:"date"`
	Time     string          `json:"time"`
	UserID   string          `json:"user_id"`
	Amount   decimal.Decimal `json:"amount"`
	Kind     AdjustmentKind  `json:"kind"`
}

type AdjustmentTotals struct {
	Returns  decimal.Decimal `json:"returns"`
	Payouts  decimal.Decimal `json:"payouts"`
	Receipts decimal.Decimal `json:"receipts"`
	Payments decimal.Decimal `json:"payments"`
}

func (t *AdjustmentTotals) Add(kind AdjustmentKind, amount decimal.Decimal) {
	switch kind {
	case AdjustmentReturn:
		t.Returns = t.Returns.Add(amount)
	case AdjustmentPayout:
		t.Payouts = t.Payouts.Add(amount)
	case AdjustmentReceipt:
		t.Receipts = t.Receipts.Add(amount)
	case AdjustmentPayment:
		t.Payments = t.Payments.Add(amount)
	}
}

func (t AdjustmentTotals) Sum() decimal.Decimal {
	return t.Returns.Add(t.Payouts).Add(t.Receipts).Add(t.Payments)
}

type MeterReading struct {
	Grade   Grade           `json:"grade"`
	Opening decimal.Decimal `json:"opening"`
	Closing decimal.Decimal `json:"closing"`
}

// FuelRate applies from StartDate until a later rate for the same name
// starts. CreatedAt breaks ties between rates sharing a start date.
type FuelRate struct {
	RateName  string          `json:"rate_name"`
	StartDate time.Time       `json:"start_date"`
	Value     decimal.Decimal `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}

type StaffPerformance struct {
	Attendant    string          `json:"attendant"`
	Sales        decimal.Decimal `json:"sales"`
	Transactions int             `json:"transactions"`
}

type TrendPoint struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

type TerminalTotal struct {
	Terminal int             `json:"terminal"`
	Total    decimal.Decimal `json:"total"`
}

// DailyAggregate is one calendar day's rollup. Sales fields come from the
// aggregator; the reconciliation fields are present only when a daily report
// was saved for that date.
type DailyAggregate struct {
	Date          time.Time          `json:"date"`
	FuelTotal     decimal.Decimal    `json:"fuel_total"`
	DieselTotal   decimal.Decimal    `json:"diesel_total"`
	UnleadedTotal decimal.Decimal    `json:"unleaded_total"`
	NonFuelTotal  decimal.Decimal    `json:"nonfuel_total"`
	Revenue       decimal.Decimal    `json:"revenue"`
	Returns       decimal.Decimal    `json:"returns"`
	NetRevenue    decimal.Decimal    `json:"net_revenue"`
	VAT           decimal.Decimal    `json:"vat"`
	Transactions  int                `json:"transactions"`
	Staff         []StaffPerformance `json:"staff"`

	Reconciled        bool            `json:"reconciled"`
	TheoreticalLitres decimal.Decimal `json:"theoretical_litres"`
	TheoreticalValue  decimal.Decimal `json:"theoretical_value"`
	ActualPOS         decimal.Decimal `json:"actual_pos"`
	VariancePOS       decimal.Decimal `json:"variance_pos"`
	Cash              decimal.Decimal `json:"cash"`
	Cards             decimal.Decimal `json:"cards"`
	ActualSales       decimal.Decimal `json:"actual_sales"`
	OverShort         decimal.Decimal `json:"over_short"`
}

type PeriodSales struct {
	Today decimal.Decimal `json:"today"`
	Week  decimal.Decimal `json:"week"`
	Month decimal.Decimal `json:"month"`
}

type DashboardSnapshot struct {
	StoreID     string    `json:"store_id"`
	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Window      Window    `json:"window"`

	Periods        PeriodSales      `json:"periods"`
	FuelTotal      decimal.Decimal  `json:"fuel_total"`
	DieselTotal    decimal.Decimal  `json:"diesel_total"`
	UnleadedTotal  decimal.Decimal  `json:"unleaded_total"`
	DieselLitres   decimal.Decimal  `json:"diesel_litres"`
	UnleadedLitres decimal.Decimal  `json:"unleaded_litres"`
	NonFuelTotal   decimal.Decimal  `json:"nonfuel_total"`
	Revenue        decimal.Decimal  `json:"total_revenue"`
	Returns        decimal.Decimal  `json:"total_returns"`
	NetRevenue     decimal.Decimal  `json:"nett_revenue"`
	VAT            decimal.Decimal  `json:"total_vat"`
	Transactions   int              `json:"total_transactions"`
	AvgTransaction decimal.Decimal  `json:"avg_transaction_value"`
	FuelPercentage decimal.Decimal  `json:"fuel_percentage"`
	Adjustments    AdjustmentTotals `json:"adjustments"`

	Staff     []StaffPerformance `json:"staff_performance"`
	Daily     []TrendPoint       `json:"revenue_trend"`
	Hourly    []TrendPoint       `json:"hourly_trend"`
	Terminals []TerminalTotal    `json:"terminal_totals"`
	Days      []DailyAggregate   `json:"days"`
}

// Clone copies every slice, including each day's staff list, so the copy
// shares no backing arrays with s.
func (s DashboardSnapshot) Clone() DashboardSnapshot {
	out := s
	out.Staff = slices.Clone(s.Staff)
	out.Daily = slices.Clone(s.Daily)
	out.Hourly = slices.Clone(s.Hourly)
	out.Terminals = slices.Clone(s.Terminals)
	out.Days = slices.Clone(s.Days)
	for i := range out.Days {
		out.Days[i].Staff = slices.Clone(s.Days[i].Staff)
	}
	return out
}

// GradeLine is one grade's meter reconciliation inside a daily report.
type GradeLine struct {
	Grade       Grade           `json:"grade"`
	Opening     decimal.Decimal `json:"opening"`
	Closing     decimal.Decimal `json:"closing"`
	Litres      decimal.Decimal `json:"litres"`
	Rate        decimal.Decimal `json:"rate"`
	RateMissing bool            `json:"rate_missing"`
	Value       decimal.Decimal `json:"value"`
}

// DailySaleReport is the persisted reconciliation row, one per date.
type DailySaleReport struct {
	ReportDate        time.Time       `json:"report_date"`
	Lines             []GradeLine     `json:"lines"`
	PumpedTheoretical decimal.Decimal `json:"pumped_theoretical"`
	ActualPOS         decimal.Decimal `json:"actual_pos"`
	VariancePOS       decimal.Decimal `json:"variance_pos"`
	Cash              decimal.Decimal `json:"cash"`
	Cards             decimal.Decimal `json:"cards"`
	ActualSales       decimal.Decimal `json:"actual_sales"`
	NonFuelActual     decimal.Decimal `json:"nonfuel_actual"`
	ExpectedTotal     decimal.Decimal `json:"expected_total"`
	VarianceSales     decimal.Decimal `json:"variance_sales"`
	Expenses          decimal.Decimal `json:"expenses"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	OverShort         decimal.Decimal `json:"over_short"`
	Comments          string          `json:"comments"`
	Saved             bool            `json:"saved"`
}

// Line returns the report line for grade, or a zero line.
func (r DailySaleReport) Line(grade Grade) GradeLine {
	for _, line := range r.Lines {
		if line.Grade == grade {
			return line
		}
	}
	return GradeLine{Grade: grade}
}

// DailySaleEntry is a manual capture for one date. Nil fields were not
// provided and keep whatever was saved before.
type DailySaleEntry struct {
	ReportDate string           `json:"date" validate:"required,datetime=2006-01-02"`
	ULPOpening *decimal.Decimal `json:"ulp_open,omitempty" validate:"omitempty,gte=0"`
	ULPClosing *decimal.Decimal `json:"ulp_close,omitempty" validate:"omitempty,gte=0"`
	D50Opening *decimal.Decimal `json:"d50_open,omitempty" validate:"omitempty,gte=0"`
	D50Closing *decimal.Decimal `json:"d50_close,omitempty" validate:"omitempty,gte=0"`
	ActualPOS  *decimal.Decimal `json:"actual_pos,omitempty" validate:"omitempty,gte=0"`
	Cash       *decimal.Decimal `json:"cash,omitempty" validate:"omitempty,gte=0"`
	Cards      *decimal.Decimal `json:"cards,omitempty" validate:"omitempty,gte=0"`
	Expenses   *decimal.Decimal `json:"expenses,omitempty" validate:"omitempty,gte=0"`
	Comments   *string          `json:"comments,omitempty" validate:"omitempty,max=2000"`
}

// FuelRateRequest captures new rates; a nil value leaves that grade unchanged.
type FuelRateRequest struct {
	StartDate string           `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	ULP       *decimal.Decimal `json:"rate_r22_12,omitempty" validate:"omitempty,gt=0"`
	D50       *decimal.Decimal `json:"rate_r23_36,omitempty" validate:"omitempty,gt=0"`
}

// AuditRow is one posaud line. Rows sharing Opref form one printed slip.
type AuditRow struct {
	Date    time.Time `json:"date"`
	Time    string    `json:"time"`
	UserID  string    `json:"user_id"`
	Logfile string    `json:"logfile,omitempty"`
	Opref   string    `json:"opref"`
	Details string    `json:"details"`
	Code    string    `json:"code,omitempty"`
}
