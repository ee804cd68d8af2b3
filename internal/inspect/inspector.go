package inspect

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/e2b-dev/infra/packages/pageinspect/internal/metrics"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/pagemap"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/procfs"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/stats"
)

type Config struct {
	ProcRoot   string
	PageSize   uint64
	Workers    int
	BatchPages int

	Logger  *zap.Logger
	Metrics metrics.Metrics
}

// Inspector answers queries about the physical backing of a process memory.
// It holds no state between calls, every query is a fresh snapshot.
type Inspector struct {
	config Config
}

func New(config Config) *Inspector {
	if config.ProcRoot == "" {
		config.ProcRoot = procfs.DefaultRoot
	}

	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	if config.PageSize == 0 {
		config.PageSize = pagemap.DefaultPageSize
	}

	if config.Metrics.PagesResolvedMetric == nil {
		config.Metrics = metrics.Noop()
	}

	return &Inspector{config: config}
}

// Filters select the pages returned by List. All enabled filters must match.
type Filters struct {
	SwappedOnly bool
	PresentOnly bool
	AnonOnly    bool
}

func (f Filters) matchRegion(r procfs.Region) bool {
	return !f.AnonOnly || r.IsAnonymous()
}

func (f Filters) matchEntry(e pagemap.Entry) bool {
	if f.SwappedOnly && !e.IsSwapped() {
		return false
	}

	if f.PresentOnly && !e.IsPresent() {
		return false
	}

	return true
}

// Page is a resolved virtual page of the inspected process.
type Page struct {
	Addr   uint64
	Entry  pagemap.Entry
	Region procfs.Region
}

// snapshot holds the handles of one query. Close must be called once done.
type snapshot struct {
	regions  []procfs.Region
	resolver *pagemap.Resolver
	close    func() error
}

func (i *Inspector) open(pid int) (*snapshot, error) {
	regions, err := procfs.ListRegions(i.config.ProcRoot, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to list regions: %w", err)
	}

	f, err := pagemap.Open(i.config.ProcRoot, pid)
	if err != nil {
		return nil, err
	}

	resolver := pagemap.NewResolver(f, i.config.PageSize,
		pagemap.WithBatchPages(i.config.BatchPages),
		pagemap.WithMetrics(i.config.Metrics),
		pagemap.WithLogger(i.config.Logger),
	)

	i.config.Logger.Debug("opened process snapshot",
		zap.Int("target_pid", pid),
		zap.Int("regions", len(regions)),
	)

	return &snapshot{
		regions:  regions,
		resolver: resolver,
		close:    f.Close,
	}, nil
}

func (s *snapshot) Close() error {
	return s.close()
}

// List returns the pages of the process passing the filters, in region then address order.
// The sequence stops after yielding the first error, no page of the failing region is yielded before it.
func (i *Inspector) List(ctx context.Context, pid int, filters Filters) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		snap, err := i.open(pid)
		if err != nil {
			yield(Page{}, err)

			return
		}
		defer snap.Close()

		for _, region := range snap.regions {
			if err := ctx.Err(); err != nil {
				yield(Page{}, err)

				return
			}

			if !filters.matchRegion(region) {
				continue
			}

			// A region is yielded only once all of its records were read.
			pages, err := snap.resolver.Resolve(ctx, region)
			if err != nil {
				yield(Page{}, fmt.Errorf("failed to resolve region %s: %w", region, err))

				return
			}

			for _, p := range pages {
				if !filters.matchEntry(p.Entry) {
					continue
				}

				if !yield(Page{Addr: p.Addr, Entry: p.Entry, Region: region}, nil) {
					return
				}
			}
		}
	}
}

// Stats returns the page counters of every backing object of the process.
func (i *Inspector) Stats(ctx context.Context, pid int) (stats.Snapshot, error) {
	snap, err := i.open(pid)
	if err != nil {
		return nil, err
	}
	defer snap.Close()

	return stats.Aggregate(ctx, i.config.Logger, snap.resolver, snap.regions, i.config.Workers)
}
