package pagemap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/e2b-dev/infra/packages/pageinspect/internal/metrics"
	"github.com/e2b-dev/infra/packages/pageinspect/internal/procfs"
)

// DefaultBatchPages is the number of records read by a single positional read.
const DefaultBatchPages = 512

var ErrShortRead = errors.New("short pagemap read")

// Page is a virtual page together with its pagemap record.
type Page struct {
	Addr  uint64
	Entry Entry
}

// Resolver translates virtual pages of a process to their pagemap records.
// It is safe for concurrent use, as long as the source is.
type Resolver struct {
	src        io.ReaderAt
	pageSize   uint64
	batchPages uint64

	metrics metrics.Metrics
	logger  *zap.Logger
}

type Option func(*Resolver)

// WithBatchPages sets how many records are fetched by one positional read when walking a region.
func WithBatchPages(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.batchPages = uint64(n)
		}
	}
}

func WithMetrics(m metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func NewResolver(src io.ReaderAt, pageSize uint64, opts ...Option) *Resolver {
	r := &Resolver{
		src:        src,
		pageSize:   pageSize,
		batchPages: DefaultBatchPages,
		metrics:    metrics.Noop(),
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Resolver) PageSize() uint64 {
	return r.pageSize
}

// Walk calls fn for every page of the region in ascending address order.
// Walking stops early when fn returns false.
func (r *Resolver) Walk(ctx context.Context, region procfs.Region, fn func(addr uint64, e Entry) bool) error {
	if region.Start == region.End {
		return nil
	}

	start := time.Now()
	total := region.PageCount(r.pageSize)
	buf := make([]byte, min(total, r.batchPages)*EntrySize)

	var walked uint64
	defer func() {
		r.metrics.RecordRegion(ctx, walked, time.Since(start), region.IsAnonymous())
	}()

	for walked < total {
		n := min(total-walked, r.batchPages)
		batch := buf[:n*EntrySize]
		base := region.Start + walked*r.pageSize

		err := r.readAt(batch, Offset(base, r.pageSize))
		if err != nil {
			return fmt.Errorf("failed to read pagemap for %s at %x: %w", region, base, err)
		}

		for i := range n {
			e := Entry(binary.NativeEndian.Uint64(batch[i*EntrySize:]))
			if !fn(base+i*r.pageSize, e) {
				walked += i + 1

				return nil
			}
		}

		walked += n
	}

	r.logger.Debug("resolved region",
		zap.Stringer("region", region),
		zap.Uint64("pages", walked),
	)

	return nil
}

// Resolve returns the records of every page of the region.
// Nothing is returned for a region that could not be read completely.
func (r *Resolver) Resolve(ctx context.Context, region procfs.Region) ([]Page, error) {
	pages := make([]Page, 0, region.PageCount(r.pageSize))

	err := r.Walk(ctx, region, func(addr uint64, e Entry) bool {
		pages = append(pages, Page{Addr: addr, Entry: e})

		return true
	})
	if err != nil {
		return nil, err
	}

	return pages, nil
}

// readAt fills b with the records at off. The kernel reports addresses past the
// end of the user address space (such as [vsyscall]) as end of file, those
// records are left zero and decode as unmapped pages.
func (r *Resolver) readAt(b []byte, off int64) error {
	n, err := r.src.ReadAt(b, off)
	if n == len(b) {
		return nil
	}

	if errors.Is(err, io.EOF) {
		clear(b[n:])

		r.logger.Debug("pagemap ended before the requested records",
			zap.Int64("offset", off),
			zap.Int("expected", len(b)),
			zap.Int("got", n),
		)

		return nil
	}

	if err == nil {
		return fmt.Errorf("%w: expected %d bytes at offset %d, got %d", ErrShortRead, len(b), off, n)
	}

	return err
}

func Path(root string, pid int) string {
	return filepath.Join(root, strconv.Itoa(pid), "pagemap")
}

// Open opens the pagemap of the process. The caller is responsible for closing it.
func Open(root string, pid int) (*os.File, error) {
	f, err := os.Open(Path(root, pid))
	if err != nil {
		if errors.Is(err, unix.ENOENT) || errors.Is(err, unix.ESRCH) {
			return nil, fmt.Errorf("failed to open pagemap of pid %d: %w: %w", pid, procfs.ErrProcessNotFound, err)
		}

		return nil, fmt.Errorf("failed to open pagemap of pid %d: %w", pid, err)
	}

	return f, nil
}
