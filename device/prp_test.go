package device

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
)

func TestPRPWalkFirstPage(t *testing.T) {
	space := mem.NewSpace(4096)
	base := space.Map(make([]byte, 4096))
	w := prpWalker{space: space, pageSize: 4096}

	segs, status := w.walk(base+0x200, 0xDEADBEEF, 512)
	require.True(t, status.Success())
	assert.Equal(t, []segment{{addr: base + 0x200, length: 512}}, segs)

	w.strict = true
	_, status = w.walk(base+0x200, 0xDEADBEEF, 512)
	assert.Equal(t, uint8(nvme.SCInvalidField), status.SC())

	_, status = w.walk(base+0x200, 0, 512)
	assert.True(t, status.Success())
}

func TestPRPWalkMisalignedPRP1(t *testing.T) {
	w := prpWalker{space: mem.NewSpace(4096), pageSize: 4096}

	for _, off := range []uint64{1, 2, 3, 0x201} {
		_, status := w.walk(mem.DefaultBusBase+off, 0, 512)
		assert.Equal(t, uint8(nvme.SCPRPOffsetInvalid), status.SC(), "offset %#x", off)
	}
}

func TestPRPWalkSecondPage(t *testing.T) {
	space := mem.NewSpace(4096)
	base := space.Map(make([]byte, 2*4096))
	w := prpWalker{space: space, pageSize: 4096}

	segs, status := w.walk(base+0xE00, base+4096, 1024)
	require.True(t, status.Success())
	assert.Equal(t, []segment{
		{addr: base + 0xE00, length: 512},
		{addr: base + 4096, length: 512},
	}, segs)

	_, status = w.walk(base+0xE00, base+4096+8, 1024)
	assert.Equal(t, uint8(nvme.SCPRPOffsetInvalid), status.SC())
}

func TestPRPWalkListChains(t *testing.T) {
	const page = 32 // Four entries per list page

	space := mem.NewSpace(4096)
	data := space.Map(make([]byte, 4096))
	lists := space.Map(make([]byte, 4096))
	w := prpWalker{space: space, pageSize: page}

	put := func(addr, v uint64) {
		var b [prpEntrySize]byte
		binary.LittleEndian.PutUint64(b[:], v)
		require.NoError(t, space.Write(addr, b[:]))
	}
	l1, l2 := lists, lists+2*page
	put(l1, data+1*page)
	put(l1+8, data+2*page)
	put(l1+16, data+3*page)
	put(l1+24, l2)
	put(l2, data+4*page)
	put(l2+8, data+5*page)

	segs, status := w.walk(data, l1, 6*page)
	require.True(t, status.Success())
	require.Len(t, segs, 6)
	for i, s := range segs {
		assert.Equal(t, data+uint64(i)*page, s.addr, "segment %d", i)
		assert.Equal(t, uint64(page), s.length, "segment %d", i)
	}

	// A list entry that is not page aligned is rejected.
	put(l2+8, data+5*page+4)
	_, status = w.walk(data, l1, 6*page)
	assert.Equal(t, uint8(nvme.SCPRPOffsetInvalid), status.SC())
}

func TestPRPWalkUnmappedList(t *testing.T) {
	space := mem.NewSpace(4096)
	base := space.Map(make([]byte, 4096))
	w := prpWalker{space: space, pageSize: 4096}

	_, status := w.walk(base, 0x10, 3*4096)
	assert.Equal(t, uint8(nvme.SCDataTransferError), status.SC())
}

func TestGatherScatter(t *testing.T) {
	space := mem.NewSpace(4096)
	base := space.Map(make([]byte, 3*4096))
	segs := []segment{
		{addr: base + 4096 - 4, length: 4},
		{addr: base + 2*4096, length: 4},
	}

	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, scatter(space, segs, src))

	dst := make([]byte, len(src))
	require.NoError(t, gather(space, segs, dst))
	assert.Equal(t, src, dst)

	bad := []segment{{addr: 0x10, length: 4}}
	assert.ErrorIs(t, gather(space, bad, dst), pkg.ErrBadAddress)
}
