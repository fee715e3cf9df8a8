// Package parser turns free-text receipt lines into item entries. The rules
// are specific to this station's till formats.
package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	qtyPricePattern    = regexp.MustCompile(`^(\d+(\.\d+)?)\s*@\s*([\d.]+)\s*([\d.]*)`)
	descriptionPattern = regexp.MustCompile(`^(.+?)\s+(\d+\.\d{2})$`)
)

const itemsOneTotalPrefix = "ITEMS 1 TOTAL"

// Line is one raw detail row of a receipt group, in receipt order.
type Line struct {
	Details string `json:"details"`
	Code    string `json:"code,omitempty"`
}

type Item struct {
	Name      string          `json:"name"`
	Qty       decimal.Decimal `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
	Barcode   string          `json:"barcode,omitempty"`
}

// Rule tries to build an item from lines[i]. consumed is how many lines the
// match used, starting at i.
type Rule struct {
	Name  string
	Apply func(lines []Line, i int) (item Item, consumed int, ok bool)
}

// DefaultRules is the cascade in evaluation order. The fallback is not part of
// the list; Parse applies it when nothing matches.
var DefaultRules = []Rule{
	{Name: "qty-price", Apply: qtyPriceCurrent},
	{Name: "qty-price-next", Apply: qtyPriceNext},
	{Name: "items-1-total", Apply: itemsOneTotal},
	{Name: "description-price", Apply: descriptionPrice},
}

type Parser struct {
	rules []Rule
}

func New(rules ...Rule) *Parser {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Parser{rules: rules}
}

// Parse is New().Parse(lines).
func Parse(lines []Line) []Item {
	return New().Parse(lines)
}

// Parse never fails. Lines that match no rule become zero-priced items named
// after their text; blank lines are skipped.
func (p *Parser) Parse(lines []Line) []Item {
	items := make([]Item, 0, len(lines))
	for i := 0; i < len(lines); {
		details := strings.TrimSpace(lines[i].Details)
		if details == "" {
			i++
			continue
		}

		matched := false
		for _, rule := range p.rules {
			item, consumed, ok := rule.Apply(lines, i)
			if !ok || consumed < 1 {
				continue
			}
			items = append(items, item)
			i += consumed
			matched = true
			break
		}
		if matched {
			continue
		}

		items = append(items, Item{
			Name:      details,
			Qty:       decimal.NewFromInt(1),
			UnitPrice: decimal.Zero,
			Total:     decimal.Zero,
			Barcode:   lines[i].Code,
		})
		i++
	}
	return items
}

type qtyPrice struct {
	qty   decimal.Decimal
	unit  decimal.Decimal
	total decimal.Decimal
}

func matchQtyPrice(details string) (qtyPrice, bool) {
	m := qtyPricePattern.FindStringSubmatch(strings.TrimSpace(details))
	if m == nil {
		return qtyPrice{}, false
	}
	if !strings.ContainsAny(m[3], "0123456789") {
		return qtyPrice{}, false
	}
	qty, err := decimal.NewFromString(m[1])
	if err != nil {
		return qtyPrice{}, false
	}
	unit, err := decimal.NewFromString(m[3])
	if err != nil {
		return qtyPrice{}, false
	}
	total := qty.Mul(unit)
	if strings.ContainsAny(m[4], "0123456789") {
		parsed, err := decimal.NewFromString(m[4])
		if err != nil {
			return qtyPrice{}, false
		}
		total = parsed
	}
	return qtyPrice{qty: qty, unit: unit, total: total}, true
}

// qtyPriceCurrent names the item after the previous line when that line is a
// description rather than another qty/price line.
func qtyPriceCurrent(lines []Line, i int) (Item, int, bool) {
	details := strings.TrimSpace(lines[i].Details)
	qp, ok := matchQtyPrice(details)
	if !ok {
		return Item{}, 0, false
	}

	name, barcode := details, lines[i].Code
	if i > 0 {
		prev := lines[i-1]
		prevDetails := strings.TrimSpace(prev.Details)
		if _, prevIsQty := matchQtyPrice(prevDetails); prevDetails != "" && !prevIsQty {
			name = prevDetails
			if prev.Code != "" {
				barcode = prev.Code
			}
		}
	}
	return Item{Name: name, Qty: qp.qty, UnitPrice: qp.unit, Total: qp.total, Barcode: barcode}, 1, true
}

func qtyPriceNext(lines []Line, i int) (Item, int, bool) {
	if i+1 >= len(lines) {
		return Item{}, 0, false
	}
	qp, ok := matchQtyPrice(lines[i+1].Details)
	if !ok {
		return Item{}, 0, false
	}
	return Item{
		Name:      strings.TrimSpace(lines[i].Details),
		Qty:       qp.qty,
		UnitPrice: qp.unit,
		Total:     qp.total,
		Barcode:   lines[i].Code,
	}, 2, true
}

// itemsOneTotal applies when the receipt group carries a single-item footer;
// its trailing number prices the current line.
func itemsOneTotal(lines []Line, i int) (Item, int, bool) {
	for _, line := range lines {
		details := strings.TrimSpace(line.Details)
		if !strings.HasPrefix(strings.ToUpper(details), itemsOneTotalPrefix) {
			continue
		}
		fields := strings.Fields(details)
		total, err := decimal.NewFromString(fields[len(fields)-1])
		if err != nil {
			return Item{}, 0, false
		}
		return Item{
			Name:      strings.TrimSpace(lines[i].Details),
			Qty:       decimal.NewFromInt(1),
			UnitPrice: total,
			Total:     total,
			Barcode:   lines[i].Code,
		}, 1, true
	}
	return Item{}, 0, false
}

func descriptionPrice(lines []Line, i int) (Item, int, bool) {
	m := descriptionPattern.FindStringSubmatch(strings.TrimSpace(lines[i].Details))
	if m == nil {
		return Item{}, 0, false
	}
	price, err := decimal.NewFromString(m[2])
	if err != nil {
		return Item{}, 0, false
	}
	return Item{
		Name:      m[1],
		Qty:       decimal.NewFromInt(1),
		UnitPrice: price,
		Total:     price,
		Barcode:   lines[i].Code,
	}, 1, true
}
