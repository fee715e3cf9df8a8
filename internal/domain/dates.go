package domain

import (
	"errors"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// Day truncates t to midnight UTC of its calendar date in t's location.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return parsed, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Window is the reporting window for a dashboard: rows in [From, To] are
// fetched and bucketed into today, the Monday to Sunday week and the calendar
// month. Top-level totals, per-day aggregates and trends cover only
// [TotalsFrom, To].
type Window struct {
	Today      time.Time `json:"today"`
	WeekStart  time.Time `json:"week_start"`
	WeekEnd    time.Time `json:"week_end"`
	MonthStart time.Time `json:"month_start"`
	MonthEnd   time.Time `json:"month_end"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	TotalsFrom time.Time `json:"totals_from"`
}

// NewWindow builds the month-to-date window around today. When the week
// started in the previous month, From reaches back to the Monday so the week
// bucket is complete; totals stay month-to-date.
func NewWindow(today time.Time) Window {
	today = Day(today)
	offset := (int(today.Weekday()) + 6) % 7
	weekStart := today.AddDate(0, 0, -offset)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	from := monthStart
	if weekStart.Before(from) {
		from = weekStart
	}
	return Window{
		Today:      today,
		WeekStart:  weekStart,
		WeekEnd:    weekStart.AddDate(0, 0, 6),
		MonthStart: monthStart,
		MonthEnd:   monthStart.AddDate(0, 1, -1),
		From:       from,
		To:         today,
		TotalsFrom: monthStart,
	}
}

// WithRange keeps the period buckets but folds and totals over [from, to].
func (w Window) WithRange(from time.Time, to time.Time) Window {
	w.From = Day(from)
	w.To = Day(to)
	w.TotalsFrom = w.From
	return w
}

func (w Window) Contains(day time.Time) bool {
	return !day.Before(w.From) && !day.After(w.To)
}

// InTotals reports whether day counts toward top-level totals.
func (w Window) InTotals(day time.Time) bool {
	return w.Contains(day) && !day.Before(w.TotalsFrom)
}

func (w Window) InWeek(day time.Time) bool {
	return !day.Before(w.WeekStart) && !day.After(w.WeekEnd)
}

func (w Window) InMonth(day time.Time) bool {
	return !day.Before(w.MonthStart) && !day.After(w.MonthEnd)
}

// Key identifies the window for cache and single-flight purposes.
func (w Window) Key() string {
	return FormatDate(w.From) + ".." + FormatDate(w.To) + "@" + FormatDate(w.Today)
}

// ClampRange resolves an optional from/to pair against today: empty values
// default to today, future dates are pulled back to today and from never
// exceeds to.
func ClampRange(rawFrom string, rawTo string, today time.Time) (time.Time, time.Time, error) {
	today = Day(today)
	from, to := today, today
	if strings.TrimSpace(rawFrom) != "" {
		parsed, err := ParseDate(rawFrom)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = parsed
	}
	if strings.TrimSpace(rawTo) != "" {
		parsed, err := ParseDate(rawTo)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = parsed
	}
	if from.After(today) {
		from = today
	}
	if to.After(today) {
		to = today
	}
	if from.After(to) {
		from = to
	}
	return from, to, nil
}

// DaysBetween lists every date from..to inclusive.
func DaysBetween(from time.Time, to time.Time) []time.Time {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil
	}
	days := make([]time.Time, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
