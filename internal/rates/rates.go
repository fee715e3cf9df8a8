// Package rates resolves the fuel rate in effect on a date.
package rates

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"forecourt/backend/internal/domain"
)

// Book holds rate history per rate name, ordered by start date.
type Book struct {
	byName map[string][]domain.FuelRate
}

func NewBook(history []domain.FuelRate) *Book {
	b := &Book{byName: make(map[string][]domain.FuelRate)}
	for _, rate := range history {
		if rate.RateName == "" || rate.StartDate.IsZero() {
			continue
		}
		b.byName[rate.RateName] = append(b.byName[rate.RateName], rate)
	}
	for name := range b.byName {
		list := b.byName[name]
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].StartDate.Equal(list[j].StartDate) {
				return list[i].StartDate.Before(list[j].StartDate)
			}
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		})
	}
	return b
}

// AsOf returns the latest rate for name whose start date is on or before day.
// A miss returns zero and false; callers must show that as "no rate", not as
// free fuel.
func (b *Book) AsOf(name string, day time.Time) (decimal.Decimal, bool) {
	if b == nil {
		return decimal.Zero, false
	}
	list := b.byName[name]
	day = domain.Day(day)
	idx := sort.Search(len(list), func(i int) bool {
		return list[i].StartDate.After(day)
	})
	if idx == 0 {
		return decimal.Zero, false
	}
	return list[idx-1].Value, true
}

// ForGrade is AsOf keyed by grade.
func (b *Book) ForGrade(grade domain.Grade, day time.Time) (decimal.Decimal, bool) {
	info, ok := domain.LookupGrade(grade)
	if !ok {
		return decimal.Zero, false
	}
	return b.AsOf(info.RateName, day)
}

// Current returns every grade's rate as of day, keyed by rate name. Missing
// rates are zero.
func (b *Book) Current(day time.Time) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(domain.Grades))
	for _, info := range domain.Grades {
		v, _ := b.AsOf(info.RateName, day)
		out[info.RateName] = v
	}
	return out
}
