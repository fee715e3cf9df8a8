// Package record reads flat column→scalar rows as returned by the row source.
// A missing key is absent, not zero: every accessor reports whether a usable
// value was present so callers choose their own default.
package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Record map[string]any

const DateLayout = "2006-01-02"

func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// String returns the trimmed textual form of key, or "" when absent.
func (r Record) String(key string) string {
	return String(r[key])
}

func (r Record) Decimal(key string) (decimal.Decimal, bool) {
	return Decimal(r[key])
}

// DecimalOr returns the value of key or fallback when absent or non-numeric.
func (r Record) DecimalOr(key string, fallback decimal.Decimal) decimal.Decimal {
	if d, ok := Decimal(r[key]); ok {
		return d
	}
	return fallback
}

func (r Record) Date(key string) (time.Time, bool) {
	return Date(r[key])
}

func (r Record) Int(key string) (int, bool) {
	d, ok := Decimal(r[key])
	if !ok || !d.IsInteger() {
		return 0, false
	}
	return int(d.IntPart()), true
}

func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case []byte:
		return strings.TrimSpace(string(val))
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

// Decimal coerces numbers and numeric strings. Thousands separators are
// tolerated in strings.
func Decimal(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return val, true
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero, false
		}
		return *val, true
	case float64:
		return decimal.NewFromFloat(val), true
	case float32:
		return decimal.NewFromFloat32(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int32:
		return decimal.NewFromInt32(val), true
	case int64:
		return decimal.NewFromInt(val), true
	case json.Number:
		return parseDecimal(string(val))
	case string:
		return parseDecimal(val)
	case []byte:
		return parseDecimal(string(val))
	default:
		return decimal.Zero, false
	}
}

func parseDecimal(raw string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Date accepts time values and strings starting with YYYY-MM-DD and returns
// midnight UTC of that calendar date.
func Date(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return time.Date(val.Year(), val.Month(), val.Day(), 0, 0, 0, 0, time.UTC), true
	case string, []byte:
		s := String(val)
		if len(s) < len(DateLayout) {
			return time.Time{}, false
		}
		parsed, err := time.Parse(DateLayout, s[:len(DateLayout)])
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}
