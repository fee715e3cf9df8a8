package aggregate

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"forecourt/backend/internal/domain"
)

// FoldSharded splits in by calendar date, folds up to shards partitions in
// parallel and merges them. The result equals Fold over the same input.
func FoldSharded(ctx context.Context, window domain.Window, resolver Resolver, in Input, shards int) (domain.DashboardSnapshot, error) {
	parts := partition(in, shards)
	if len(parts) <= 1 {
		return Fold(window, resolver, in), nil
	}

	accs := make([]*Accumulator, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			acc := NewAccumulator(window, resolver)
			acc.AddAll(parts[i])
			accs[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.DashboardSnapshot{}, err
	}

	total := NewAccumulator(window, resolver)
	for _, acc := range accs {
		total.Merge(acc)
	}
	return total.Snapshot(), nil
}

func partition(in Input, shards int) []Input {
	if shards < 2 {
		return []Input{in}
	}

	seen := make(map[time.Time]struct{})
	note := func(t time.Time) { seen[domain.Day(t)] = struct{}{} }
	for _, r := range in.Rows {
		note(r.Date)
	}
	for _, r := range in.Returns {
		note(r.Date)
	}
	for _, r := range in.Adjustments {
		note(r.Date)
	}
	if len(seen) < 2 {
		return []Input{in}
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if shards > len(dates) {
		shards = len(dates)
	}
	slot := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		slot[d] = i % shards
	}

	parts := make([]Input, shards)
	for _, r := range in.Rows {
		i := slot[domain.Day(r.Date)]
		parts[i].Rows = append(parts[i].Rows, r)
	}
	for _, r := range in.Returns {
		i := slot[domain.Day(r.Date)]
		parts[i].Returns = append(parts[i].Returns, r)
	}
	for _, r := range in.Adjustments {
		i := slot[domain.Day(r.Date)]
		parts[i].Adjustments = append(parts[i].Adjustments, r)
	}
	return parts
}
