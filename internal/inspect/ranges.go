package inspect

import (
	"context"
	"fmt"
	"iter"

	"github.com/bits-and-blooms/bitset"

	"github.com/e2b-dev/infra/packages/pageinspect/internal/pagemap"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/procfs"
)

// AddrRange is a run of contiguous virtual pages.
type AddrRange struct {
	// Start is inclusive.
	Start uint64
	// End is exclusive.
	End uint64
}

func (r AddrRange) Size() uint64 {
	return r.End - r.Start
}

// RegionRanges describes which parts of a region are resident and which are swapped out.
type RegionRanges struct {
	Region  procfs.Region
	Present []AddrRange
	Swapped []AddrRange
}

// Ranges returns the present and swapped runs of every region of the process.
// The sequence stops after yielding the first error.
func (i *Inspector) Ranges(ctx context.Context, pid int) iter.Seq2[RegionRanges, error] {
	return func(yield func(RegionRanges, error) bool) {
		snap, err := i.open(pid)
		if err != nil {
			yield(RegionRanges{}, err)

			return
		}
		defer snap.Close()

		pageSize := snap.resolver.PageSize()

		for _, region := range snap.regions {
			if err := ctx.Err(); err != nil {
				yield(RegionRanges{}, err)

				return
			}

			pages := uint(region.PageCount(pageSize))
			present := bitset.New(pages)
			swapped := bitset.New(pages)

			err := snap.resolver.Walk(ctx, region, func(addr uint64, e pagemap.Entry) bool {
				idx := uint((addr - region.Start) / pageSize)

				if e.IsPresent() {
					present.Set(idx)
				}

				if e.IsSwapped() {
					swapped.Set(idx)
				}

				return true
			})
			if err != nil {
				yield(RegionRanges{}, fmt.Errorf("failed to resolve region %s: %w", region, err))

				return
			}

			result := RegionRanges{
				Region:  region,
				Present: collectRanges(region.Start, pageSize, present),
				Swapped: collectRanges(region.Start, pageSize, swapped),
			}

			if !yield(result, nil) {
				return
			}
		}
	}
}

func collectRanges(base, pageSize uint64, b *bitset.BitSet) []AddrRange {
	ranges := make([]AddrRange, 0)
	for start, count := range bitsetRuns(b) {
		ranges = append(ranges, AddrRange{
			Start: base + uint64(start)*pageSize,
			End:   base + uint64(start+count)*pageSize,
		})
	}

	return ranges
}

// bitsetRuns returns the start index and length of every run of set bits.
func bitsetRuns(b *bitset.BitSet) iter.Seq2[uint, uint] {
	return func(yield func(start, count uint) bool) {
		start, ok := b.NextSet(0)

		for ok {
			end, endOk := b.NextClear(start)
			if !endOk {
				yield(start, b.Len()-start)

				return
			}

			if !yield(start, end-start) {
				return
			}

			start, ok = b.NextSet(end + 1)
		}
	}
}
