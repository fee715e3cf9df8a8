// Package meter computes litres dispensed from pump totaliser readings.
package meter

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/record"
)

var (
	DefaultMax       = decimal.NewFromInt(100000)
	DefaultThreshold = decimal.NewFromFloat(0.5)
)

// Calculator treats a closing reading below the opening reading as a counter
// wrap only when the gap exceeds Threshold × Max. Smaller negative gaps are
// taken as bad captures and yield zero.
//
// The threshold trades missed small rollovers (reported as zero) for never
// booking a near-full meter of fuel on a mistyped reading. It has not been
// confirmed against the pump hardware; keep it configurable.
type Calculator struct {
	Max       decimal.Decimal
	Threshold decimal.Decimal
}

func NewCalculator(max float64, threshold float64) Calculator {
	c := Calculator{Max: DefaultMax, Threshold: DefaultThreshold}
	if max > 0 {
		c.Max = decimal.NewFromFloat(max)
	}
	if threshold > 0 && threshold < 1 {
		c.Threshold = decimal.NewFromFloat(threshold)
	}
	return c
}

// Dispensed accepts raw record values. Missing or non-numeric readings give
// zero; the result is never negative.
func (c Calculator) Dispensed(opening any, closing any) decimal.Decimal {
	from, ok := record.Decimal(opening)
	if !ok {
		return decimal.Zero
	}
	to, ok := record.Decimal(closing)
	if !ok {
		return decimal.Zero
	}

	if to.GreaterThanOrEqual(from) {
		return to.Sub(from)
	}
	if from.Sub(to).GreaterThan(c.Threshold.Mul(c.Max)) {
		wrapped := c.Max.Sub(from).Add(to)
		if wrapped.IsNegative() {
			return decimal.Zero
		}
		return wrapped
	}
	return decimal.Zero
}

// Dispensed uses the default threshold with the given meter maximum.
func Dispensed(opening any, closing any, max decimal.Decimal) decimal.Decimal {
	return Calculator{Max: max, Threshold: DefaultThreshold}.Dispensed(opening, closing)
}

var (
	ulpPrimary   = regexp.MustCompile(`03\s+unleaded 95\s+(\d+)`)
	ulpSecondary = regexp.MustCompile(`01\s+unleaded 95\s+(\d+)`)
	dieselTotal  = regexp.MustCompile(`50ppm\s+(\d+)`)
)

// ParseTotaliser reads end-of-day totaliser lines from the till audit log.
// The "03" unleaded pump reading wins over "01" when both are present. Grades
// with no reading are zero.
func ParseTotaliser(lines []string) map[domain.Grade]decimal.Decimal {
	var ulp03, ulp01, d50 decimal.Decimal
	var has03, has01 bool

	for _, line := range lines {
		s := strings.ToLower(line)
		switch {
		case strings.Contains(s, "03 unleaded 95"):
			if v, ok := firstGroup(ulpPrimary, s); ok {
				ulp03, has03 = v, true
			}
		case strings.Contains(s, "01 unleaded 95"):
			if v, ok := firstGroup(ulpSecondary, s); ok {
				ulp01, has01 = v, true
			}
		case strings.Contains(s, "diesel 50ppm"):
			if v, ok := firstGroup(dieselTotal, s); ok {
				d50 = v
			}
		}
	}

	ulp := decimal.Zero
	switch {
	case has03 && !ulp03.IsZero():
		ulp = ulp03
	case has01:
		ulp = ulp01
	}

	return map[domain.Grade]decimal.Decimal{
		domain.GradeUnleaded95: ulp,
		domain.GradeDiesel50:   d50,
	}
}

func firstGroup(re *regexp.Regexp, s string) (decimal.Decimal, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, false
	}
	return v, true
}
