package procfs

import "fmt"

// AnonymousKey is the key anonymous regions are grouped under.
const AnonymousKey = "anon"

// Region is a contiguous range of the virtual address space of a process,
// as listed in /proc/<pid>/maps.
type Region struct {
	// Start is the first address of the region. Start is inclusive.
	Start uint64
	// End is the end address of the region. End is exclusive.
	End uint64
	// Path is the object backing the region. Empty for anonymous memory.
	Path string
}

func (r *Region) Size() uint64 {
	return r.End - r.Start
}

func (r *Region) IsAnonymous() bool {
	return r.Path == ""
}

// Key returns the identity the region is aggregated under.
func (r *Region) Key() string {
	if r.IsAnonymous() {
		return AnonymousKey
	}

	return r.Path
}

// PageCount returns the number of pages of the given size in the region.
func (r *Region) PageCount(pageSize uint64) uint64 {
	return r.Size() / pageSize
}

func (r Region) String() string {
	path := r.Path
	if path == "" {
		path = "none"
	}

	return fmt.Sprintf("%x-%x %s", r.Start, r.End, path)
}
