package slips

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
)

func money(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %s: %v", raw, err)
	}
	return v
}

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	v, err := domain.ParseDate(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return v
}

func TestFuelSlips(t *testing.T) {
	report := FuelSlips([]domain.TransactionRow{
		{Attendant: "Jose", ItemName: "DIESEL 50PPM", Quantity: money(t, "30"), Total: money(t, "684"), VAT: money(t, "89.22")},
		{Attendant: "Sibu", ItemName: "UNLEADED 95", Quantity: money(t, "10.5"), Total: money(t, "231.84")},
		{Attendant: "Jose", ItemName: "DIESEL 50PPM", Quantity: money(t, "5"), Total: money(t, "114")},
	})
	if len(report.Slips) != 3 || report.Slips[0].Attendant != "Jose" {
		t.Fatalf("expected slips in input order, got %+v", report.Slips)
	}
	if !report.TotalLitres.Equal(money(t, "45.5")) || !report.TotalAmount.Equal(money(t, "1029.84")) {
		t.Fatalf("unexpected totals litres=%s amount=%s", report.TotalLitres, report.TotalAmount)
	}
	if len(report.LitresByFuel) != 2 || report.LitresByFuel[0].Name != "DIESEL 50PPM" || !report.LitresByFuel[0].Quantity.Equal(money(t, "35")) {
		t.Fatalf("unexpected litres by fuel %+v", report.LitresByFuel)
	}
}

func TestReceiptsNettTakings(t *testing.T) {
	report := Receipts(
		[]domain.TransactionRow{
			{SlipID: "S1", Attendant: "Sibu", ItemName: "BREAD", Quantity: money(t, "1"), Total: money(t, "15"), VAT: money(t, "1.96")},
			{SlipID: "S1", Attendant: "Sibu", ItemName: "MILK", Quantity: money(t, "2"), Total: money(t, "38")},
			{SlipID: "S2", Attendant: "Jose", ItemName: "PIE", Quantity: money(t, "1"), Total: money(t, "30")},
		},
		[]domain.FinancialAdjustment{
			{SlipID: "S2", Kind: domain.AdjustmentReturn, Amount: money(t, "5")},
			{SlipID: "F9", UserID: "Jose", Kind: domain.AdjustmentPayout, Amount: money(t, "20")},
			{SlipID: "F9", Kind: domain.AdjustmentPayment, Amount: money(t, "3")},
		},
	)
	if report.Transactions != 3 {
		t.Fatalf("expected 3 receipts, got %d", report.Transactions)
	}
	if len(report.Receipts[0].Items) != 2 || !report.Receipts[0].AmountPaid.Equal(money(t, "53")) {
		t.Fatalf("unexpected first receipt %+v", report.Receipts[0])
	}
	if !report.Receipts[2].Adjustments.Payouts.Equal(money(t, "20")) || len(report.Receipts[2].Items) != 0 {
		t.Fatalf("unexpected financial-only receipt %+v", report.Receipts[2])
	}
	// 83 paid - 5 returns - 20 payouts - 3 payments.
	if !report.NettTakings.Equal(money(t, "55")) {
		t.Fatalf("expected nett takings 55, got %s", report.NettTakings)
	}
}

func TestMostSoldOrdersByQuantity(t *testing.T) {
	items := MostSold([]domain.TransactionRow{
		{ItemName: "PIE", Quantity: money(t, "2"), Total: money(t, "60")},
		{ItemName: "COKE", Quantity: money(t, "5"), Total: money(t, "100")},
		{ItemName: "PIE", Quantity: money(t, "4"), Total: money(t, "120")},
		{ItemName: "", Quantity: money(t, "1"), Total: money(t, "1")},
	})
	if len(items) != 3 || items[0].Name != "PIE" || !items[0].Quantity.Equal(money(t, "6")) {
		t.Fatalf("unexpected ranking %+v", items)
	}
	if items[2].Name != domain.UnknownItem {
		t.Fatalf("expected unnamed items bucketed as %q, got %q", domain.UnknownItem, items[2].Name)
	}
}

func TestReturnSlips(t *testing.T) {
	rows := []domain.AuditRow{
		{Date: day(t, "2025-05-01"), Time: "09:00:00", Opref: "A", Details: "BREAD 15.00"},
		{Date: day(t, "2025-05-01"), Time: "09:00:05", Opref: "A", Details: "RETURN AMOUNT : 15.00"},
		{Date: day(t, "2025-05-02"), Time: "08:00:00", Opref: "B", Details: "PIE 30.00"},
		{Date: day(t, "2025-05-03"), Time: "07:00:00", Opref: "C", Details: "Refund amount 4.5"},
	}
	report := ReturnSlips(rows)
	if len(report.Rows) != 3 {
		t.Fatalf("expected 3 rows from return slips, got %d", len(report.Rows))
	}
	if report.Rows[0].Opref != "C" || report.Rows[2].Details != "BREAD 15.00" {
		t.Fatalf("expected newest first, got %+v", report.Rows)
	}
	if !report.Total.Equal(money(t, "19.50")) {
		t.Fatalf("expected total 19.50, got %s", report.Total)
	}
}

func TestAuditSlips(t *testing.T) {
	rows := []domain.AuditRow{
		{Date: day(t, "2025-05-01"), Time: "09:00:00", Opref: "A", UserID: "C7DFA1", Details: "BREAD", Code: "600"},
		{Date: day(t, "2025-05-01"), Time: "09:00:00", Opref: "A", Details: "1 @ 15.00 15.00"},
		{Date: day(t, "2025-05-02"), Time: "10:00:00", Opref: "B", Details: "COKE 2L 24.50"},
	}
	slips := AuditSlips(rows, nil)
	if len(slips) != 2 || slips[0].Opref != "B" {
		t.Fatalf("expected 2 slips newest first, got %+v", slips)
	}
	a := slips[1]
	if len(a.Items) != 1 || a.Items[0].Name != "BREAD" || !a.Total.Equal(money(t, "15")) || a.UserID != "C7DFA1" {
		t.Fatalf("unexpected slip %+v", a)
	}
}
