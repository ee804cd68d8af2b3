package stats

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/e2b-dev/infra/packages/pageinspect/internal/pagemap"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/procfs"
)

// PageStats counts the pages of one backing object.
// The counters are independent, a page can be counted in more than one of them.
type PageStats struct {
	Swapped  uint64 `json:"swapped"`
	Present  uint64 `json:"present"`
	Unmapped uint64 `json:"unmapped"`
	Total    uint64 `json:"total"`
}

// Add folds a single page into the counters.
func (s *PageStats) Add(e pagemap.Entry) {
	if e.IsSwapped() {
		s.Swapped++
	}

	if e.IsPresent() {
		s.Present++
	}

	// Zero PFN is treated as unmapped, even though a present page could in theory have it.
	if e.PFN() == 0 {
		s.Unmapped++
	}

	s.Total++
}

func (s *PageStats) Merge(other PageStats) {
	s.Swapped += other.Swapped
	s.Present += other.Present
	s.Unmapped += other.Unmapped
	s.Total += other.Total
}

// Snapshot maps backing object keys to their page counters.
type Snapshot map[string]PageStats

func (s Snapshot) Add(key string, e pagemap.Entry) {
	entry := s[key]
	entry.Add(e)
	s[key] = entry
}

func (s Snapshot) Merge(other Snapshot) {
	for key, stats := range other {
		entry := s[key]
		entry.Merge(stats)
		s[key] = entry
	}
}

// Total sums the counters of all keys.
func (s Snapshot) Total() PageStats {
	var total PageStats
	for _, stats := range s {
		total.Merge(stats)
	}

	return total
}

type KeyStats struct {
	Key   string    `json:"key"`
	Stats PageStats `json:"stats"`
}

// Sorted returns the entries ordered ascending by the swapped count.
func (s Snapshot) Sorted() []KeyStats {
	sorted := make([]KeyStats, 0, len(s))
	for key, stats := range s {
		sorted = append(sorted, KeyStats{Key: key, Stats: stats})
	}

	slices.SortFunc(sorted, func(a, b KeyStats) int {
		return cmp.Or(
			cmp.Compare(a.Stats.Swapped, b.Stats.Swapped),
			cmp.Compare(a.Key, b.Key),
		)
	})

	return sorted
}

// Aggregate resolves every page of the regions and folds them into a snapshot.
// Regions are spread over the workers, each one keeping its own snapshot until the final merge.
func Aggregate(ctx context.Context, logger *zap.Logger, resolver *pagemap.Resolver, regions []procfs.Region, workers int) (Snapshot, error) {
	workers = max(1, min(workers, len(regions)))

	partials := make([]Snapshot, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		partials[w] = make(Snapshot)

		g.Go(func() error {
			local := partials[w]

			for i := w; i < len(regions); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}

				region := regions[i]
				if region.Start == region.End {
					continue
				}

				entry := local[region.Key()]

				err := resolver.Walk(ctx, region, func(_ uint64, e pagemap.Entry) bool {
					entry.Add(e)

					return true
				})
				if err != nil {
					return fmt.Errorf("failed to resolve region %s: %w", region, err)
				}

				local[region.Key()] = entry
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot := make(Snapshot)
	for _, partial := range partials {
		snapshot.Merge(partial)
	}

	logger.Debug("aggregated page stats",
		zap.Int("regions", len(regions)),
		zap.Int("workers", workers),
		zap.Int("keys", len(snapshot)),
	)

	return snapshot, nil
}
