package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/e2b-dev/infra/packages/pageinspect/internal/inspect"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/stats"
)

const noPath = "none"

// WritePage writes a single list row: address, PFN or swap entry, swapped flag and backing path.
func WritePage(w io.Writer, page inspect.Page) error {
	path := page.Region.Path
	if path == "" {
		path = noPath
	}

	_, err := fmt.Fprintf(w, "%x %x %t %s\n", page.Addr, page.Entry.PFN(), page.Entry.IsSwapped(), path)

	return err
}

// WriteStats writes one row per backing object, ascending by swapped pages, followed by a summary.
// The host swap usage is omitted when swap is nil.
func WriteStats(w io.Writer, snapshot stats.Snapshot, pageSize uint64, swap *mem.SwapMemoryStat) error {
	for _, ks := range snapshot.Sorted() {
		s := ks.Stats

		_, err := fmt.Fprintf(w, "%s swapped=%d present=%d unmapped=%d total=%d (%s swapped, %s present)\n",
			ks.Key,
			s.Swapped,
			s.Present,
			s.Unmapped,
			s.Total,
			humanize.IBytes(s.Swapped*pageSize),
			humanize.IBytes(s.Present*pageSize),
		)
		if err != nil {
			return err
		}
	}

	total := snapshot.Total()

	_, err := fmt.Fprintf(w, "\nSUMMARY\n=======\n")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Backing objects    %d\n", len(snapshot))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Pages              %d (%s)\n", total.Total, humanize.IBytes(total.Total*pageSize))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Present            %d (%s)\n", total.Present, humanize.IBytes(total.Present*pageSize))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Swapped            %d (%s)\n", total.Swapped, humanize.IBytes(total.Swapped*pageSize))
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "Unmapped           %d (%s)\n", total.Unmapped, humanize.IBytes(total.Unmapped*pageSize))
	if err != nil {
		return err
	}

	if swap != nil {
		_, err = fmt.Fprintf(w, "Host swap          %s / %s used (%.1f%%)\n",
			humanize.IBytes(swap.Used),
			humanize.IBytes(swap.Total),
			swap.UsedPercent,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// WriteStatsJSON writes the sorted snapshot as a JSON array.
func WriteStatsJSON(w io.Writer, snapshot stats.Snapshot) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(snapshot.Sorted())
}

// WriteRanges writes the present and swapped runs of a region.
func WriteRanges(w io.Writer, r inspect.RegionRanges) error {
	if _, err := fmt.Fprintf(w, "%s\n", r.Region); err != nil {
		return err
	}

	for _, p := range r.Present {
		if _, err := fmt.Fprintf(w, "  present [%x, %x) %s\n", p.Start, p.End, humanize.IBytes(p.Size())); err != nil {
			return err
		}
	}

	for _, s := range r.Swapped {
		if _, err := fmt.Fprintf(w, "  swapped [%x, %x) %s\n", s.Start, s.End, humanize.IBytes(s.Size())); err != nil {
			return err
		}
	}

	return nil
}
