// Package export writes daily sales reports as spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"forecourt/backend/internal/domain"
)

const SheetName = "Sales"

var Headings = []string{
	"Date",
	"ULP Opening", "ULP Closing", "ULP Litres", "ULP Rate", "ULP Value",
	"D50 Opening", "D50 Closing", "D50 Litres", "D50 Rate", "D50 Value",
	"Pumped Theoretical", "Actual POS", "Variance POS",
	"Cash", "Cards", "Actual Sales", "Non-Fuel", "Expected", "Variance Sales",
	"Expenses", "Grand Total", "Over/Short", "Comments", "Saved",
}

// cells returns one report row in Headings order. Money stays decimal so
// each writer picks its own representation.
func cells(r domain.DailySaleReport) []any {
	ulp := r.Line(domain.GradeUnleaded95)
	d50 := r.Line(domain.GradeDiesel50)
	return []any{
		domain.FormatDate(r.ReportDate),
		ulp.Opening, ulp.Closing, ulp.Litres, ulp.Rate, ulp.Value,
		d50.Opening, d50.Closing, d50.Litres, d50.Rate, d50.Value,
		r.PumpedTheoretical, r.ActualPOS, r.VariancePOS,
		r.Cash, r.Cards, r.ActualSales, r.NonFuelActual, r.ExpectedTotal, r.VarianceSales,
		r.Expenses, r.GrandTotal, r.OverShort, r.Comments, r.Saved,
	}
}

// CSV writes a heading row and one row per report. Amounts use two decimals.
func CSV(w io.Writer, reports []domain.DailySaleReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Headings); err != nil {
		return err
	}
	for _, r := range reports {
		row := cells(r)
		record := make([]string, len(row))
		for i, v := range row {
			switch val := v.(type) {
			case decimal.Decimal:
				record[i] = val.StringFixed(2)
			default:
				record[i] = fmt.Sprint(val)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// XLSX writes a single-sheet workbook. Amounts are numeric cells.
func XLSX(w io.Writer, reports []domain.DailySaleReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	for i, h := range Headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
	}

	for rowNo, r := range reports {
		for i, v := range cells(r) {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNo+2)
			if err != nil {
				return err
			}
			if d, ok := v.(decimal.Decimal); ok {
				v = d.Round(2).InexactFloat64()
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Format selects a writer by name.
func Format(name string) (func(io.Writer, []domain.DailySaleReport) error, error) {
	switch name {
	case "csv":
		return CSV, nil
	case "xlsx", "":
		return XLSX, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", name)
	}
}
