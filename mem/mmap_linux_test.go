//go:build linux

package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/prpsweep/pkg"
)

func TestMmapAllocator(t *testing.T) {
	a, err := NewMmapAllocator(4096)
	require.NoError(t, err)

	b, err := a.AllocateAt(1024, 128)
	require.NoError(t, err)
	assert.Equal(t, uint64(128), b.Addr()%4096)
	assert.Equal(t, 1, a.Outstanding())

	b.Fill(0xFF)
	for _, v := range b.Bytes() {
		require.Equal(t, byte(0xFF), v)
	}

	b.Release()
	assert.Equal(t, 0, a.Outstanding())
}

func TestMmapAllocatorPageSize(t *testing.T) {
	_, err := NewMmapAllocator(100)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}
