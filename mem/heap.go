package mem

import (
	"fmt"
	"sync/atomic"

	"github.com/ardnew/prpsweep/pkg"
)

// HeapAllocator allocates buffers from the Go heap and maps them into a
// Space.
type HeapAllocator struct {
	space       *Space
	outstanding atomic.Int64
}

// NewHeapAllocator returns an allocator mapping its buffers into space.
func NewHeapAllocator(space *Space) *HeapAllocator {
	return &HeapAllocator{space: space}
}

// Space returns the address space buffers are mapped into.
func (a *HeapAllocator) Space() *Space {
	return a.space
}

// Outstanding returns the number of buffers not yet released.
func (a *HeapAllocator) Outstanding() int {
	return int(a.outstanding.Load())
}

// Allocate implements Allocator.
func (a *HeapAllocator) Allocate(length uint64, pageAligned bool) (*Buffer, error) {
	return a.AllocateAt(length, 0)
}

// AllocateAt implements Allocator.
func (a *HeapAllocator) AllocateAt(length, pageOffset uint64) (*Buffer, error) {
	pageSize := a.space.PageSize()
	if err := checkPlacement(length, pageOffset, pageSize); err != nil {
		return nil, err
	}

	backing := make([]byte, pagesFor(length, pageOffset, pageSize)*pageSize)
	base := a.space.Map(backing)
	a.outstanding.Add(1)

	pkg.LogDebug(pkg.ComponentMem, "heap buffer allocated",
		"addr", fmt.Sprintf("%#x", base+pageOffset),
		"length", length,
		"offset", pageOffset)

	return &Buffer{
		backing:  backing,
		offset:   pageOffset,
		length:   length,
		addr:     base + pageOffset,
		pageSize: pageSize,
		release: func() {
			a.space.Unmap(base)
			a.outstanding.Add(-1)
		},
	}, nil
}

func checkPlacement(length, pageOffset, pageSize uint64) error {
	if length == 0 {
		return fmt.Errorf("%w: zero length buffer", pkg.ErrInvalidParameter)
	}
	if pageOffset >= pageSize {
		return fmt.Errorf("%w: offset %d outside %d byte page", pkg.ErrInvalidParameter, pageOffset, pageSize)
	}
	if pageOffset%4 != 0 {
		return fmt.Errorf("%w: offset %d not dword aligned", pkg.ErrInvalidParameter, pageOffset)
	}
	return nil
}
