// Package ingest normalizes raw row-source records into domain rows. Every
// normalizer degrades instead of failing: a row that cannot be used is
// reported with ok=false and the caller drops it.
package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/parser"
	"forecourt/backend/internal/record"
)

// FuelLog reads an eod_data row from the POS1 dispensing log.
func FuelLog(rec record.Record) (domain.TransactionRow, bool) {
	day, ok := rec.Date("s_date")
	if !ok {
		return domain.TransactionRow{}, false
	}

	gradeCode := rec.String("gradeid")
	name := "FUEL"
	if grade, ok := domain.ClassifyFuel(gradeCode, ""); ok {
		name = string(grade)
	}

	volume := rec.DecimalOr("volume", decimal.Zero)
	price := rec.DecimalOr("price", decimal.Zero)
	total, ok := rec.Decimal("total")
	if !ok {
		total = volume.Mul(price)
	}

	return domain.TransactionRow{
		Terminal:    domain.TerminalFuel,
		Date:        day,
		Time:        rec.String("s_time"),
		AttendantID: rec.String("tagid"),
		ItemName:    name,
		GradeCode:   gradeCode,
		Quantity:    nonNegative(volume),
		UnitPrice:   nonNegative(price),
		Total:       nonNegative(total),
		VAT:         decimal.Zero,
	}, true
}

// ShopTill reads a pos2_stock_data / pos3_stock_data row. The line amount is
// the last number in the detail text; void lines are dropped.
func ShopTill(rec record.Record, terminal int) (domain.TransactionRow, bool) {
	day, ok := rec.Date("trandate")
	if !ok {
		return domain.TransactionRow{}, false
	}
	details := rec.String("details")
	if details == "" || parser.IsVoid(details) {
		return domain.TransactionRow{}, false
	}
	amount, ok := parser.LastNumber(details)
	if !ok {
		amount = decimal.Zero
	}

	return domain.TransactionRow{
		Terminal:    terminal,
		Date:        day,
		Time:        rec.String("trantime"),
		AttendantID: rec.String("userid"),
		ItemName:    details,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   nonNegative(amount),
		Total:       nonNegative(amount),
		VAT:         decimal.Zero,
		SlipID:      firstNonEmpty(rec.String("slip_id"), rec.String("logfile")),
	}, true
}

// SlipItem reads a slip_items row. Rows without a slip id are keyed by their
// own row id so each counts as one transaction.
func SlipItem(rec record.Record) (domain.TransactionRow, bool) {
	day, ok := rec.Date("trandate")
	if !ok {
		return domain.TransactionRow{}, false
	}
	terminal, ok := rec.Int("termnum")
	if !ok {
		return domain.TransactionRow{}, false
	}

	name := rec.String("item_name")
	if name == "" {
		name = domain.UnknownItem
	}
	qty := rec.DecimalOr("qty", decimal.Zero)
	total := rec.DecimalOr("total_price", decimal.Zero)
	unit, ok := rec.Decimal("unit_price")
	if !ok && !qty.IsZero() {
		unit = total.Div(qty).Round(2)
	}

	return domain.TransactionRow{
		Terminal:    terminal,
		Date:        day,
		Time:        rec.String("trantime"),
		AttendantID: rec.String("attendant"),
		Attendant:   rec.String("attendant"),
		ItemName:    name,
		ItemCode:    rec.String("item_code"),
		Quantity:    nonNegative(qty),
		UnitPrice:   nonNegative(unit),
		Total:       nonNegative(total),
		VAT:         nonNegative(rec.DecimalOr("vat", decimal.Zero)),
		SlipID:      slipKey(rec, "slip"),
	}, true
}

// Financial reads a slip_financials row. Unknown fin_type values are dropped.
func Financial(rec record.Record) (domain.FinancialAdjustment, bool) {
	kind, ok := domain.ParseAdjustmentKind(strings.ToUpper(rec.String("fin_type")))
	if !ok {
		return domain.FinancialAdjustment{}, false
	}
	day, ok := rec.Date("trandate")
	if !ok {
		return domain.FinancialAdjustment{}, false
	}
	terminal, _ := rec.Int("termnum")

	return domain.FinancialAdjustment{
		SlipID:   slipKey(rec, "fin"),
		Terminal: terminal,
		Date:     day,
		Time:     rec.String("trantime"),
		UserID:   rec.String("userid"),
		Amount:   nonNegative(rec.DecimalOr("amount", decimal.Zero)),
		Kind:     kind,
	}, true
}

// AuditReturn reads a posaud row and keeps it only if it mentions a return or
// refund. The amount is the first number in the text, which is lossy for
// lines that carry a quantity before the amount.
func AuditReturn(rec record.Record) (domain.ReturnLine, bool) {
	details := rec.String("details")
	if !parser.IsReturn(details) {
		return domain.ReturnLine{}, false
	}
	day, ok := rec.Date("trandate")
	if !ok {
		return domain.ReturnLine{}, false
	}
	return domain.ReturnLine{
		Date:    day,
		SlipID:  rec.String("opref"),
		Details: details,
		Amount:  parser.ReturnAmount(details),
	}, true
}

// Audit reads a posaud row as-is for slip drill-downs.
func Audit(rec record.Record) (domain.AuditRow, bool) {
	day, ok := rec.Date("trandate")
	if !ok {
		return domain.AuditRow{}, false
	}
	return domain.AuditRow{
		Date:    day,
		Time:    rec.String("trantime"),
		UserID:  rec.String("userid"),
		Logfile: rec.String("logfile"),
		Opref:   rec.String("opref"),
		Details: rec.String("details"),
		Code:    rec.String("code"),
	}, true
}

// FuelRate reads a fuel_rates row. Rows captured without a start date apply
// from the day they were created.
func FuelRate(rec record.Record) (domain.FuelRate, bool) {
	name := rec.String("rate_name")
	value, ok := rec.Decimal("value")
	if name == "" || !ok {
		return domain.FuelRate{}, false
	}

	var createdAt time.Time
	if t, ok := rec["created_at"].(time.Time); ok {
		createdAt = t.UTC()
	} else if raw := rec.String("created_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			createdAt = t.UTC()
		}
	}

	start, ok := rec.Date("start_date")
	if !ok {
		start, ok = rec.Date("created_at")
	}
	if !ok {
		return domain.FuelRate{}, false
	}

	return domain.FuelRate{
		RateName:  name,
		StartDate: start,
		Value:     value,
		CreatedAt: createdAt,
	}, true
}

func slipKey(rec record.Record, prefix string) string {
	if id := rec.String("slip_id"); id != "" {
		return id
	}
	if id := rec.String("id"); id != "" {
		return fmt.Sprintf("%s_%s", prefix, id)
	}
	return ""
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
