package ingest

import (
	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/record"
)

// Persisted daily_sales_reports columns that are not per grade.
const (
	ColReportDate        = "report_date"
	ColActualPOS         = "actual_pos"
	ColCash              = "cash"
	ColCards             = "cards"
	ColExpenses          = "expenses"
	ColComments          = "comments"
	ColPumpedTheoretical = "pumped_theoretical"
	ColVariancePOS       = "variance_pos"
	ColActualSales       = "actual_sales"
	ColVarianceSales     = "variance_sales"
	ColGrandTotal        = "grand_total"
	ColOverShort         = "over_short"
)

// DailyReport reads a saved daily_sales_reports row. Missing numeric columns
// read as zero; a missing rate column marks that grade's rate missing.
func DailyReport(rec record.Record) (domain.DailySaleReport, bool) {
	day, ok := rec.Date(ColReportDate)
	if !ok {
		return domain.DailySaleReport{}, false
	}

	zero := decimal.Zero
	report := domain.DailySaleReport{
		ReportDate:        day,
		PumpedTheoretical: rec.DecimalOr(ColPumpedTheoretical, zero),
		ActualPOS:         rec.DecimalOr(ColActualPOS, zero),
		VariancePOS:       rec.DecimalOr(ColVariancePOS, zero),
		Cash:              rec.DecimalOr(ColCash, zero),
		Cards:             rec.DecimalOr(ColCards, zero),
		ActualSales:       rec.DecimalOr(ColActualSales, zero),
		VarianceSales:     rec.DecimalOr(ColVarianceSales, zero),
		Expenses:          rec.DecimalOr(ColExpenses, zero),
		GrandTotal:        rec.DecimalOr(ColGrandTotal, zero),
		OverShort:         rec.DecimalOr(ColOverShort, zero),
		Comments:          rec.String(ColComments),
		Saved:             true,
	}
	for _, info := range domain.Grades {
		rate, hasRate := rec.Decimal(info.RateUsedColumn)
		line := domain.GradeLine{
			Grade:       info.Grade,
			Opening:     rec.DecimalOr(info.OpeningColumn, zero),
			Closing:     rec.DecimalOr(info.ClosingColumn, zero),
			Litres:      rec.DecimalOr(info.DispensedColumn, zero),
			Rate:        rate,
			RateMissing: !hasRate || rate.IsZero(),
		}
		line.Value = line.Litres.Mul(line.Rate).Round(2)
		report.Lines = append(report.Lines, line)
	}
	report.ExpectedTotal = report.ActualSales.Sub(report.VarianceSales)
	return report, true
}

// ReportColumns is the full persisted row for report. Values are decimals
// except the date (YYYY-MM-DD) and comments.
func ReportColumns(report domain.DailySaleReport) record.Record {
	row := record.Record{
		ColReportDate:        domain.FormatDate(report.ReportDate),
		ColActualPOS:         report.ActualPOS,
		ColCash:              report.Cash,
		ColCards:             report.Cards,
		ColExpenses:          report.Expenses,
		ColComments:          report.Comments,
		ColPumpedTheoretical: report.PumpedTheoretical,
		ColVariancePOS:       report.VariancePOS,
		ColActualSales:       report.ActualSales,
		ColVarianceSales:     report.VarianceSales,
		ColGrandTotal:        report.GrandTotal,
		ColOverShort:         report.OverShort,
	}
	for _, info := range domain.Grades {
		line := report.Line(info.Grade)
		row[info.OpeningColumn] = line.Opening
		row[info.ClosingColumn] = line.Closing
		row[info.DispensedColumn] = line.Litres
		row[info.RateUsedColumn] = line.Rate
	}
	return row
}

// ReportColumnNames lists the persisted columns in a stable order.
func ReportColumnNames() []string {
	names := []string{ColReportDate}
	for _, info := range domain.Grades {
		names = append(names, info.OpeningColumn, info.ClosingColumn)
	}
	names = append(names, ColActualPOS, ColCash, ColCards, ColExpenses, ColComments)
	for _, info := range domain.Grades {
		names = append(names, info.RateUsedColumn)
	}
	for _, info := range domain.Grades {
		names = append(names, info.DispensedColumn)
	}
	return append(names, ColPumpedTheoretical, ColVariancePOS, ColActualSales, ColVarianceSales, ColGrandTotal, ColOverShort)
}
