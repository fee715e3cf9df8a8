// Package slips builds the per-terminal slip drill-downs.
package slips

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
)

type FuelSlip struct {
	Attendant string          `json:"attendant"`
	Date      time.Time       `json:"date"`
	Time      string          `json:"time"`
	FuelType  string          `json:"fuel_type"`
	Litres    decimal.Decimal `json:"litres"`
	Amount    decimal.Decimal `json:"amount_paid"`
}

type NamedQuantity struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
}

type FuelSlipReport struct {
	Slips        []FuelSlip      `json:"slips"`
	TotalLitres  decimal.Decimal `json:"total_litres"`
	TotalAmount  decimal.Decimal `json:"total_amount_paid"`
	TotalVAT     decimal.Decimal `json:"total_vat"`
	LitresByFuel []NamedQuantity `json:"litres_by_fuel"`
}

// FuelSlips summarises POS1 slip items. Input order is kept.
func FuelSlips(rows []domain.TransactionRow) FuelSlipReport {
	report := FuelSlipReport{Slips: make([]FuelSlip, 0, len(rows))}
	byFuel := make(map[string]decimal.Decimal)

	for _, row := range rows {
		report.TotalLitres = report.TotalLitres.Add(row.Quantity)
		report.TotalAmount = report.TotalAmount.Add(row.Total)
		report.TotalVAT = report.TotalVAT.Add(row.VAT)
		byFuel[row.ItemName] = byFuel[row.ItemName].Add(row.Quantity)

		report.Slips = append(report.Slips, FuelSlip{
			Attendant: row.Attendant,
			Date:      row.Date,
			Time:      row.Time,
			FuelType:  row.ItemName,
			Litres:    row.Quantity,
			Amount:    row.Total,
		})
	}

	names := make([]string, 0, len(byFuel))
	for name := range byFuel {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		report.LitresByFuel = append(report.LitresByFuel, NamedQuantity{Name: name, Quantity: byFuel[name]})
	}
	return report
}

type ReceiptItem struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
	VAT      decimal.Decimal `json:"vat"`
}

type Receipt struct {
	SlipID      string                  `json:"slip_id"`
	UserID      string                  `json:"user_id"`
	Date        time.Time               `json:"date"`
	Time        string                  `json:"time"`
	Items       []ReceiptItem           `json:"items"`
	AmountPaid  decimal.Decimal         `json:"amount_paid"`
	VAT         decimal.Decimal         `json:"vat"`
	Adjustments domain.AdjustmentTotals `json:"adjustments"`
}

type ReceiptReport struct {
	Receipts     []Receipt               `json:"receipts"`
	Transactions int                     `json:"total_transactions"`
	AmountPaid   decimal.Decimal         `json:"total_amount_paid"`
	VAT          decimal.Decimal         `json:"total_vat_amount"`
	Adjustments  domain.AdjustmentTotals `json:"adjustments"`
	NettTakings  decimal.Decimal         `json:"nett_takings"`
}

// Receipts groups a shop till's slip items and financials by slip. Receipts
// appear in the order their slip was first seen.
func Receipts(rows []domain.TransactionRow, adjustments []domain.FinancialAdjustment) ReceiptReport {
	var report ReceiptReport
	index := make(map[string]int)

	receipt := func(slipID string, user string, day time.Time, at string) *Receipt {
		if i, ok := index[slipID]; ok {
			return &report.Receipts[i]
		}
		index[slipID] = len(report.Receipts)
		report.Receipts = append(report.Receipts, Receipt{
			SlipID: slipID,
			UserID: user,
			Date:   day,
			Time:   at,
			Items:  []ReceiptItem{},
		})
		return &report.Receipts[len(report.Receipts)-1]
	}

	for _, row := range rows {
		r := receipt(row.SlipID, row.Attendant, row.Date, row.Time)
		r.Items = append(r.Items, ReceiptItem{Name: row.ItemName, Quantity: row.Quantity, Amount: row.Total, VAT: row.VAT})
		r.AmountPaid = r.AmountPaid.Add(row.Total)
		r.VAT = r.VAT.Add(row.VAT)
		report.AmountPaid = report.AmountPaid.Add(row.Total)
		report.VAT = report.VAT.Add(row.VAT)
	}
	for _, adj := range adjustments {
		r := receipt(adj.SlipID, adj.UserID, adj.Date, adj.Time)
		r.Adjustments.Add(adj.Kind, adj.Amount)
		report.Adjustments.Add(adj.Kind, adj.Amount)
	}

	report.Transactions = len(report.Receipts)
	report.NettTakings = report.AmountPaid.Sub(report.Adjustments.Sum())
	return report
}

type ItemTotal struct {
	Name     string          `json:"name"`
	Quantity decimal.Decimal `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// MostSold totals items by name, highest quantity first.
func MostSold(rows []domain.TransactionRow) []ItemTotal {
	byName := make(map[string]*ItemTotal)
	for _, row := range rows {
		name := row.ItemName
		if name == "" {
			name = domain.UnknownItem
		}
		it, ok := byName[name]
		if !ok {
			it = &ItemTotal{Name: name}
			byName[name] = it
		}
		it.Quantity = it.Quantity.Add(row.Quantity)
		it.Amount = it.Amount.Add(row.Total)
	}

	out := make([]ItemTotal, 0, len(byName))
	for _, it := range byName {
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Quantity.Equal(out[j].Quantity) {
			return out[i].Quantity.GreaterThan(out[j].Quantity)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
