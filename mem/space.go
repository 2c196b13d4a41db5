package mem

import (
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/ardnew/prpsweep/pkg"
)

// DefaultBusBase is the first bus address handed out by a Space.
const DefaultBusBase = 0x1_0000_0000

type region struct {
	base uint64
	data []byte
}

func (r region) end() uint64 {
	return r.base + uint64(len(r.data))
}

// Space maps bus addresses to host memory. A simulated controller uses it
// to resolve PRP entries and metadata pointers.
type Space struct {
	mutex    sync.RWMutex
	tree     *btree.BTreeG[region]
	pageSize uint64
	next     uint64
}

// NewSpace returns an empty address space whose regions are aligned to
// pageSize.
func NewSpace(pageSize uint64) *Space {
	return &Space{
		tree: btree.NewG(8, func(a, b region) bool {
			return a.base < b.base
		}),
		pageSize: pageSize,
		next:     DefaultBusBase,
	}
}

// PageSize returns the alignment of regions in the space.
func (s *Space) PageSize() uint64 {
	return s.pageSize
}

// Map registers data at the next free page-aligned bus address and returns
// that address. A guard page separates consecutive regions.
func (s *Space) Map(data []byte) uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	base := s.next
	s.tree.ReplaceOrInsert(region{base: base, data: data})
	s.next += pagesFor(uint64(len(data)), 0, s.pageSize)*s.pageSize + s.pageSize
	return base
}

// MapAt registers data at a caller-chosen bus address.
func (s *Space) MapAt(base uint64, data []byte) error {
	if base%s.pageSize != 0 {
		return fmt.Errorf("%w: base %#x not page aligned", pkg.ErrInvalidParameter, base)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty region", pkg.ErrInvalidParameter)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	r := region{base: base, data: data}
	if s.overlaps(r) {
		return fmt.Errorf("%w: region %#x+%d overlaps", pkg.ErrInvalidParameter, base, len(data))
	}
	s.tree.ReplaceOrInsert(r)
	return nil
}

// overlaps reports whether r intersects a mapped region.
// The caller must hold the mutex.
func (s *Space) overlaps(r region) bool {
	hit := false
	s.tree.DescendLessOrEqual(region{base: r.end() - 1}, func(prev region) bool {
		hit = prev.end() > r.base
		return false
	})
	return hit
}

// Unmap removes the region registered at base.
func (s *Space) Unmap(base uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tree.Delete(region{base: base})
}

// Len returns the number of mapped regions.
func (s *Space) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.tree.Len()
}

// Slice returns the n bytes of host memory at addr. The range must lie
// within a single mapped region.
func (s *Space) Slice(addr, n uint64) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	r, ok := s.floor(addr)
	if !ok || addr+n > r.end() {
		return nil, fmt.Errorf("%w: %#x+%d", pkg.ErrBadAddress, addr, n)
	}
	off := addr - r.base
	return r.data[off : off+n], nil
}

// Read copies len(p) bytes at addr into p.
func (s *Space) Read(addr uint64, p []byte) error {
	src, err := s.Slice(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(p, src)
	return nil
}

// Write copies p to host memory at addr.
func (s *Space) Write(addr uint64, p []byte) error {
	dst, err := s.Slice(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(dst, p)
	return nil
}

// floor returns the region with the greatest base not above addr.
// The caller must hold the mutex.
func (s *Space) floor(addr uint64) (region, bool) {
	var (
		found region
		ok    bool
	)
	s.tree.DescendLessOrEqual(region{base: addr}, func(r region) bool {
		found, ok = r, addr < r.end()
		return false
	})
	return found, ok
}
