package mem

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/prpsweep/pkg"
)

func TestHeapAllocatorAllocateAt(t *testing.T) {
	tests := []struct {
		name      string
		length    uint64
		offset    uint64
		wantPages uint64
	}{
		{"aligned single block", 512, 0, 1},
		{"offset fills page", 4092, 4, 1},
		{"last offset", 512, 3584, 1},
		{"spans two pages", 4096, 8, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewHeapAllocator(NewSpace(4096))
			b, err := a.AllocateAt(tt.length, tt.offset)
			require.NoError(t, err)
			defer b.Release()

			assert.Equal(t, tt.length, b.Len())
			assert.Len(t, b.Bytes(), int(tt.length))
			assert.Equal(t, tt.offset, b.PageOffset())
			assert.Equal(t, tt.offset, b.Addr()%4096)
			assert.Equal(t, tt.wantPages, b.Pages())

			// The payload is reachable through the space at its bus address.
			b.Fill(0x5A)
			got, err := a.Space().Slice(b.Addr(), b.Len())
			require.NoError(t, err)
			assert.Equal(t, b.Bytes(), got)
		})
	}
}

func TestHeapAllocatorInvalid(t *testing.T) {
	a := NewHeapAllocator(NewSpace(4096))

	_, err := a.AllocateAt(0, 0)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
	_, err = a.AllocateAt(512, 4096)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
	_, err = a.AllocateAt(512, 6)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
	assert.Equal(t, 0, a.Outstanding())
}

func TestHeapAllocatorRelease(t *testing.T) {
	a := NewHeapAllocator(NewSpace(4096))

	b, err := a.Allocate(4096, true)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Outstanding())
	assert.Equal(t, 1, a.Space().Len())

	addr := b.Addr()
	b.Release()
	b.Release()
	assert.Equal(t, 0, a.Outstanding())

	_, err = a.Space().Slice(addr, 1)
	assert.ErrorIs(t, err, pkg.ErrBadAddress)
}

func TestBufferDump(t *testing.T) {
	a := NewHeapAllocator(NewSpace(4096))
	b, err := a.AllocateAt(20, 4)
	require.NoError(t, err)
	defer b.Release()

	copy(b.Bytes(), "0123456789abcdefghij")

	var out bytes.Buffer
	require.NoError(t, b.Dump(&out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "00000000  30 31 32 33"))
	assert.True(t, strings.HasSuffix(lines[0], "|0123456789abcdef|"))
	assert.True(t, strings.HasPrefix(lines[1], "00000010  67 68 69 6a"))
}
