package store

import (
	"context"
	"errors"
	"testing"

	"forecourt/backend/internal/record"
)

type pagedSource struct {
	total    int
	limits   []int
	offsets  []int
	failFrom int
}

func (p *pagedSource) FetchPage(_ context.Context, _ Query, offset int, limit int) ([]record.Record, error) {
	p.limits = append(p.limits, limit)
	p.offsets = append(p.offsets, offset)
	if p.failFrom > 0 && offset >= p.failFrom {
		return nil, errors.New("connection reset")
	}
	var page []record.Record
	for i := offset; i < offset+limit && i < p.total; i++ {
		page = append(page, record.Record{"n": i})
	}
	return page, nil
}

func TestFetchAllStopsOnShortPage(t *testing.T) {
	src := &pagedSource{total: 25}
	rows, err := FetchAll(context.Background(), src, Query{Table: TableShop2}, 10)
	if err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if len(rows) != 25 {
		t.Fatalf("expected 25 rows, got %d", len(rows))
	}
	if len(src.limits) != 3 {
		t.Fatalf("expected 3 page requests, got %d", len(src.limits))
	}
	for i, limit := range src.limits {
		if limit != 10 || src.offsets[i] != i*10 {
			t.Fatalf("request %d: offset=%d limit=%d", i, src.offsets[i], limit)
		}
	}
}

func TestFetchAllExactMultipleNeedsEmptyPage(t *testing.T) {
	src := &pagedSource{total: 20}
	rows, err := FetchAll(context.Background(), src, Query{Table: TableShop2}, 10)
	if err != nil || len(rows) != 20 {
		t.Fatalf("expected 20 rows, got %d (%v)", len(rows), err)
	}
	if len(src.limits) != 3 {
		t.Fatalf("expected a trailing empty page request, got %d requests", len(src.limits))
	}
}

func TestFetchAllReturnsPartialRowsOnError(t *testing.T) {
	src := &pagedSource{total: 30, failFrom: 10}
	rows, err := FetchAll(context.Background(), src, Query{Table: TableShop2}, 10)
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(rows) != 10 {
		t.Fatalf("expected rows fetched before the failure, got %d", len(rows))
	}
}

func TestFetchAllDefaultsPageSize(t *testing.T) {
	src := &pagedSource{total: 1}
	if _, err := FetchAll(context.Background(), src, Query{Table: TableShop2}, 0); err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if src.limits[0] != DefaultPageSize {
		t.Fatalf("expected default page size %d, got %d", DefaultPageSize, src.limits[0])
	}
}

func TestQueryValidate(t *testing.T) {
	cases := []struct {
		name string
		q    Query
		ok   bool
	}{
		{"known table", Query{Table: TableAudit}, true},
		{"unknown table", Query{Table: "users; drop"}, false},
		{"terminal on slip items", Query{Table: TableSlipItems, Terminal: 2}, true},
		{"terminal on audit", Query{Table: TableAudit, Terminal: 2}, false},
		{"searchable column", Query{Table: TableSlipItems, Filters: []Filter{{Columns: []string{"attendant"}, Pattern: "sib"}}}, true},
		{"unsearchable column", Query{Table: TableSlipItems, Filters: []Filter{{Columns: []string{"total_price"}, Pattern: "1"}}}, false},
	}
	for _, tc := range cases {
		_, err := tc.q.Validate()
		if (err == nil) != tc.ok {
			t.Fatalf("%s: expected ok=%v, got %v", tc.name, tc.ok, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestFilterLikePattern(t *testing.T) {
	if got := (Filter{Pattern: "sibu"}).LikePattern(); got != "%sibu%" {
		t.Fatalf("expected contains pattern, got %q", got)
	}
	if got := (Filter{Pattern: "07%"}).LikePattern(); got != "07%" {
		t.Fatalf("expected prefix pattern kept, got %q", got)
	}
}
