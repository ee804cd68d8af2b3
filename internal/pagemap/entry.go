package pagemap

import "fmt"

// https://www.kernel.org/doc/html/latest/admin-guide/mm/pagemap.html
//
// * Bits 0-54  page frame number (PFN) if present
// * Bits 0-4   swap type if swapped
// * Bits 5-54  swap offset if swapped
// * Bit  55    pte is soft-dirty
// * Bit  56    page exclusively mapped
// * Bit  57    pte is uffd-wp write-protected
// * Bits 58-60 zero
// * Bit  61    page is file-page or shared-anon
// * Bit  62    page swapped
// * Bit  63    page present
const (
	PFNMask    uint64 = 1<<55 - 1
	SwappedBit uint64 = 1 << 62
	PresentBit uint64 = 1 << 63
)

// DefaultPageSize is the page size the pagemap is indexed by on most platforms.
const DefaultPageSize = 0x1000

// EntrySize is the size of one pagemap record in bytes.
const EntrySize = 8

// Entry is a single pagemap record describing one virtual page.
// Bits other than the PFN, swapped and present ones are ignored.
type Entry uint64

func (e Entry) IsSwapped() bool {
	return uint64(e)&SwappedBit != 0
}

func (e Entry) IsPresent() bool {
	return uint64(e)&PresentBit != 0
}

// PFN returns the page frame number when the page is present,
// or the swap type and offset when it is swapped.
func (e Entry) PFN() uint64 {
	return uint64(e) & PFNMask
}

func (e Entry) String() string {
	return fmt.Sprintf("pfn=%x swapped=%t present=%t", e.PFN(), e.IsSwapped(), e.IsPresent())
}

// Offset returns the offset of the record for the given virtual address in the pagemap.
func Offset(addr, pageSize uint64) int64 {
	return int64(addr/pageSize) * EntrySize
}
