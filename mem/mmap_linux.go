//go:build linux

package mem

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/prpsweep/pkg"
)

// MmapAllocator allocates buffers from anonymous memory mappings. The bus
// address of a buffer is its virtual address, as expected by the kernel
// NVMe passthrough ioctls.
type MmapAllocator struct {
	pageSize    uint64
	outstanding atomic.Int64
}

// NewMmapAllocator returns an allocator laying out buffers in pages of
// pageSize bytes. pageSize must be a multiple of the system page size.
func NewMmapAllocator(pageSize uint64) (*MmapAllocator, error) {
	sys := uint64(unix.Getpagesize())
	if pageSize == 0 || pageSize%sys != 0 {
		return nil, fmt.Errorf("%w: page size %d not a multiple of %d",
			pkg.ErrInvalidParameter, pageSize, sys)
	}
	return &MmapAllocator{pageSize: pageSize}, nil
}

// Outstanding returns the number of buffers not yet released.
func (a *MmapAllocator) Outstanding() int {
	return int(a.outstanding.Load())
}

// Allocate implements Allocator.
func (a *MmapAllocator) Allocate(length uint64, pageAligned bool) (*Buffer, error) {
	return a.AllocateAt(length, 0)
}

// AllocateAt implements Allocator.
func (a *MmapAllocator) AllocateAt(length, pageOffset uint64) (*Buffer, error) {
	if err := checkPlacement(length, pageOffset, a.pageSize); err != nil {
		return nil, err
	}

	size := pagesFor(length, pageOffset, a.pageSize) * a.pageSize
	backing, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", size, err)
	}
	a.outstanding.Add(1)

	base := uint64(uintptr(unsafe.Pointer(&backing[0])))
	return &Buffer{
		backing:  backing,
		offset:   pageOffset,
		length:   length,
		addr:     base + pageOffset,
		pageSize: a.pageSize,
		release: func() {
			if err := unix.Munmap(backing); err != nil {
				pkg.LogWarn(pkg.ComponentMem, "munmap failed", "error", err)
			}
			a.outstanding.Add(-1)
		},
	}, nil
}
