package mem

import (
	"encoding/hex"
	"io"
	"sync"
)

// Allocator hands out page-backed buffers.
type Allocator interface {
	// Allocate returns a buffer of length bytes. When pageAligned is true
	// the payload starts on a page boundary; otherwise any dword-aligned
	// placement is allowed.
	Allocate(length uint64, pageAligned bool) (*Buffer, error)

	// AllocateAt returns a buffer of length bytes whose payload starts
	// pageOffset bytes into its first page.
	AllocateAt(length, pageOffset uint64) (*Buffer, error)
}

// Buffer is a DMA payload placed at an offset within page-aligned backing
// memory.
type Buffer struct {
	backing  []byte
	offset   uint64
	length   uint64
	addr     uint64
	pageSize uint64

	once    sync.Once
	release func()
}

// Bytes returns the payload.
func (b *Buffer) Bytes() []byte {
	return b.backing[b.offset : b.offset+b.length]
}

// Len returns the payload length in bytes.
func (b *Buffer) Len() uint64 {
	return b.length
}

// Addr returns the bus address of the first payload byte.
func (b *Buffer) Addr() uint64 {
	return b.addr
}

// PageOffset returns the payload offset within its first page.
func (b *Buffer) PageOffset() uint64 {
	return b.offset
}

// PageSize returns the page size the buffer was laid out with.
func (b *Buffer) PageSize() uint64 {
	return b.pageSize
}

// Pages returns the number of pages the payload touches.
func (b *Buffer) Pages() uint64 {
	if b.length == 0 {
		return 0
	}
	return (b.offset + b.length + b.pageSize - 1) / b.pageSize
}

// Fill sets every payload byte to v.
func (b *Buffer) Fill(v byte) {
	p := b.Bytes()
	for i := range p {
		p[i] = v
	}
}

// Dump writes a canonical hex dump of the payload to w.
func (b *Buffer) Dump(w io.Writer) error {
	return DumpBytes(w, b.Bytes())
}

// Release returns the buffer to its allocator. Calling Release more than
// once has no effect.
func (b *Buffer) Release() {
	b.once.Do(func() {
		if b.release != nil {
			b.release()
		}
	})
}

// DumpBytes writes a canonical hex dump of data to w.
func DumpBytes(w io.Writer, data []byte) error {
	d := hex.Dumper(w)
	if _, err := d.Write(data); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

// pagesFor returns the number of whole pages needed to hold length bytes
// starting at offset.
func pagesFor(length, offset, pageSize uint64) uint64 {
	n := (offset + length + pageSize - 1) / pageSize
	if n == 0 {
		n = 1
	}
	return n
}
