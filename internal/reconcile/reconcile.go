// Package reconcile computes the daily sales report: theoretical fuel value
// from meter readings and rates against captured takings.
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/meter"
	"forecourt/backend/internal/rates"
)

type Options struct {
	Calculator meter.Calculator
	// IncludeNonFuel adds the day's non-fuel sales to the expected total.
	IncludeNonFuel bool
}

type Reconciler struct {
	opts  Options
	rates *rates.Book
}

func New(book *rates.Book, opts Options) *Reconciler {
	if opts.Calculator.Max.IsZero() {
		opts.Calculator = meter.NewCalculator(0, 0)
	}
	return &Reconciler{opts: opts, rates: book}
}

// Blank is the report for a date nobody has captured yet. Actual POS falls
// back to the aggregated POS fuel sales for the day.
func Blank(day time.Time, sales domain.DailyAggregate) domain.DailySaleReport {
	report := domain.DailySaleReport{
		ReportDate: domain.Day(day),
		ActualPOS:  sales.FuelTotal,
	}
	for _, info := range domain.Grades {
		report.Lines = append(report.Lines, domain.GradeLine{Grade: info.Grade, RateMissing: true})
	}
	return report
}

// Day returns the reconciled report for day. saved may be nil.
func (r *Reconciler) Day(day time.Time, saved *domain.DailySaleReport, sales domain.DailyAggregate) domain.DailySaleReport {
	base := Blank(day, sales)
	if saved != nil {
		base = normalizeLines(*saved)
	}
	return r.Compute(base, sales.NonFuelTotal)
}

// Compute fills every derived field of report from its readings, rates and
// captured takings. Stored rates are kept; missing ones are resolved as of
// the report date.
func (r *Reconciler) Compute(report domain.DailySaleReport, nonFuel decimal.Decimal) domain.DailySaleReport {
	report = normalizeLines(report)
	theoretical := decimal.Zero

	for i, line := range report.Lines {
		line.Litres = r.opts.Calculator.Dispensed(line.Opening, line.Closing)
		if line.RateMissing || !line.Rate.IsPositive() {
			rate, ok := r.rates.ForGrade(line.Grade, report.ReportDate)
			line.Rate = rate
			line.RateMissing = !ok || !rate.IsPositive()
		}
		line.Value = line.Litres.Mul(line.Rate).Round(2)
		theoretical = theoretical.Add(line.Value)
		report.Lines[i] = line
	}

	report.PumpedTheoretical = theoretical.Round(2)
	report.VariancePOS = report.ActualPOS.Sub(report.PumpedTheoretical).Round(2)
	report.ActualSales = report.Cash.Add(report.Cards).Round(2)
	report.NonFuelActual = nonFuel.Round(2)

	report.ExpectedTotal = report.PumpedTheoretical
	if r.opts.IncludeNonFuel {
		report.ExpectedTotal = report.ExpectedTotal.Add(report.NonFuelActual)
	}
	report.VarianceSales = report.ActualSales.Sub(report.ExpectedTotal).Round(2)
	report.GrandTotal = report.ActualSales.Sub(report.Expenses).Round(2)
	report.OverShort = report.GrandTotal.Sub(report.ExpectedTotal).Round(2)
	return report
}

// Merge applies the fields entry provides over existing and recomputes. A nil
// existing means the date was never saved.
func (r *Reconciler) Merge(existing *domain.DailySaleReport, entry domain.DailySaleEntry, sales domain.DailyAggregate) (domain.DailySaleReport, error) {
	if err := ValidateEntry(entry); err != nil {
		return domain.DailySaleReport{}, err
	}
	day, err := domain.ParseDate(entry.ReportDate)
	if err != nil {
		return domain.DailySaleReport{}, invalid("date", err.Error())
	}

	report := Blank(day, sales)
	if existing != nil {
		report = normalizeLines(*existing)
		report.ReportDate = day
	}

	setLine := func(grade domain.Grade, opening *decimal.Decimal, closing *decimal.Decimal) {
		for i := range report.Lines {
			if report.Lines[i].Grade != grade {
				continue
			}
			if opening != nil {
				report.Lines[i].Opening = *opening
			}
			if closing != nil {
				report.Lines[i].Closing = *closing
			}
		}
	}
	setLine(domain.GradeUnleaded95, entry.ULPOpening, entry.ULPClosing)
	setLine(domain.GradeDiesel50, entry.D50Opening, entry.D50Closing)

	if entry.ActualPOS != nil {
		report.ActualPOS = *entry.ActualPOS
	}
	if entry.Cash != nil {
		report.Cash = *entry.Cash
	}
	if entry.Cards != nil {
		report.Cards = *entry.Cards
	}
	if entry.Expenses != nil {
		report.Expenses = *entry.Expenses
	}
	if entry.Comments != nil {
		report.Comments = *entry.Comments
	}

	report = r.Compute(report, sales.NonFuelTotal)
	report.Saved = true
	return report, nil
}

// Annotate copies the reconciliation figures of a saved report onto the
// day's sales aggregate.
func Annotate(day *domain.DailyAggregate, report domain.DailySaleReport) {
	if day == nil || !report.Saved {
		return
	}
	litres := decimal.Zero
	for _, line := range report.Lines {
		litres = litres.Add(line.Litres)
	}
	day.Reconciled = true
	day.TheoreticalLitres = litres
	day.TheoreticalValue = report.PumpedTheoretical
	day.ActualPOS = report.ActualPOS
	day.VariancePOS = report.VariancePOS
	day.Cash = report.Cash
	day.Cards = report.Cards
	day.ActualSales = report.ActualSales
	day.OverShort = report.OverShort
}

// normalizeLines gives report exactly one line per known grade, in order.
func normalizeLines(report domain.DailySaleReport) domain.DailySaleReport {
	lines := make([]domain.GradeLine, 0, len(domain.Grades))
	for _, info := range domain.Grades {
		lines = append(lines, report.Line(info.Grade))
	}
	for i := range lines {
		if lines[i].Rate.IsZero() {
			lines[i].RateMissing = true
		}
	}
	report.Lines = lines
	return report
}
