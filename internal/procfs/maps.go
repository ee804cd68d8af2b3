package procfs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultRoot is where procfs is mounted.
const DefaultRoot = "/proc"

var (
	ErrMalformedMaps   = errors.New("malformed maps line")
	ErrProcessNotFound = errors.New("process not found")
)

// This is format of the lines we are parsing:
// 7d4337f0f000-7d4337f10000 rw-p 0002d000 00:2bc 42926480   /usr/lib/x86_64-linux-gnu/ld-2.31.so
const (
	addrRangeField = 0
	pathField      = 5
)

// MapsPath returns the path of the maps listing of the process.
func MapsPath(root string, pid int) string {
	return filepath.Join(root, strconv.Itoa(pid), "maps")
}

// ListRegions reads the maps listing of the process and returns its regions in listing order.
func ListRegions(root string, pid int) ([]Region, error) {
	f, err := os.Open(MapsPath(root, pid))
	if err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ESRCH) {
			return nil, fmt.Errorf("failed to open maps of pid %d: %w: %w", pid, ErrProcessNotFound, err)
		}

		return nil, fmt.Errorf("failed to open maps of pid %d: %w", pid, err)
	}
	defer f.Close()

	regions, err := ParseMaps(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse maps of pid %d: %w", pid, err)
	}

	return regions, nil
}

// ParseMaps parses the contents of a /proc/<pid>/maps file.
// A line that cannot be parsed invalidates the whole listing.
func ParseMaps(r io.Reader) ([]Region, error) {
	regions := make([]Region, 0)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		region, err := parseMapsLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		regions = append(regions, region)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read maps: %w", err)
	}

	return regions, nil
}

func parseMapsLine(line string) (Region, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Region{}, fmt.Errorf("%w: empty line", ErrMalformedMaps)
	}

	low, high, ok := strings.Cut(fields[addrRangeField], "-")
	if !ok {
		return Region{}, fmt.Errorf("%w: invalid address range %q", ErrMalformedMaps, fields[addrRangeField])
	}

	start, err := strconv.ParseUint(low, 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("%w: invalid start address %q: %w", ErrMalformedMaps, low, err)
	}

	end, err := strconv.ParseUint(high, 16, 64)
	if err != nil {
		return Region{}, fmt.Errorf("%w: invalid end address %q: %w", ErrMalformedMaps, high, err)
	}

	if start > end {
		return Region{}, fmt.Errorf("%w: start %x is after end %x", ErrMalformedMaps, start, end)
	}

	region := Region{
		Start: start,
		End:   end,
	}

	// Only the first token of the path is kept, " (deleted)" and the like are dropped.
	if len(fields) > pathField {
		region.Path = fields[pathField]
	}

	return region, nil
}
