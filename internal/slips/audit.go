package slips

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
	"forecourt/backend/internal/parser"
)

type ReturnSlipReport struct {
	Rows  []domain.AuditRow `json:"rows"`
	Total decimal.Decimal   `json:"total_return_amount"`
}

// ReturnSlips keeps every audit line of slips that mention a return or
// refund, newest first. The total only counts lines with an "amount" marker.
func ReturnSlips(rows []domain.AuditRow) ReturnSlipReport {
	report := ReturnSlipReport{Rows: []domain.AuditRow{}}

	for _, group := range groupByOpref(rows) {
		hasReturn := false
		for _, row := range group {
			if parser.IsReturn(row.Details) {
				hasReturn = true
				break
			}
		}
		if !hasReturn {
			continue
		}
		for _, row := range group {
			report.Total = report.Total.Add(parser.SlipReturnAmount(row.Details))
		}
		report.Rows = append(report.Rows, group...)
	}

	sort.SliceStable(report.Rows, func(i, j int) bool {
		return stamp(report.Rows[i]).After(stamp(report.Rows[j]))
	})
	report.Total = report.Total.Round(2)
	return report
}

type AuditSlip struct {
	Opref  string          `json:"opref"`
	Date   time.Time       `json:"date"`
	Time   string          `json:"time"`
	UserID string          `json:"user_id"`
	Items  []parser.Item   `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

// AuditSlips rebuilds printed slips from audit lines. Lines keep their input
// order inside a slip; slips are listed newest first.
func AuditSlips(rows []domain.AuditRow, p *parser.Parser) []AuditSlip {
	if p == nil {
		p = parser.New()
	}
	groups := groupByOpref(rows)
	out := make([]AuditSlip, 0, len(groups))
	for _, group := range groups {
		lines := make([]parser.Line, 0, len(group))
		for _, row := range group {
			lines = append(lines, parser.Line{Details: row.Details, Code: row.Code})
		}
		items := p.Parse(lines)
		total := decimal.Zero
		for _, it := range items {
			total = total.Add(it.Total)
		}
		first := group[0]
		out = append(out, AuditSlip{
			Opref:  first.Opref,
			Date:   first.Date,
			Time:   first.Time,
			UserID: first.UserID,
			Items:  items,
			Total:  total,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a := stamp(domain.AuditRow{Date: out[i].Date, Time: out[i].Time})
		b := stamp(domain.AuditRow{Date: out[j].Date, Time: out[j].Time})
		return a.After(b)
	})
	return out
}

// groupByOpref keeps first-seen group order and line order within a group.
func groupByOpref(rows []domain.AuditRow) [][]domain.AuditRow {
	index := make(map[string]int)
	var groups [][]domain.AuditRow
	for _, row := range rows {
		i, ok := index[row.Opref]
		if !ok {
			i = len(groups)
			index[row.Opref] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], row)
	}
	return groups
}

// stamp is the row's date and time; an unparseable time sorts as midnight.
func stamp(row domain.AuditRow) time.Time {
	at, err := time.Parse("15:04:05", row.Time)
	if err != nil {
		return row.Date
	}
	return row.Date.Add(time.Duration(at.Hour())*time.Hour + time.Duration(at.Minute())*time.Minute + time.Duration(at.Second())*time.Second)
}
