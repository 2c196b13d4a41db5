package device

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/prpsweep/pkg"
)

func TestMemoryNamespace(t *testing.T) {
	ns := NewMemoryNamespace(4, 512, 8)
	assert.Equal(t, uint32(512), ns.BlockSize())
	assert.Equal(t, uint64(4), ns.BlockCount())
	assert.Equal(t, uint16(8), ns.MetadataSize())

	data := make([]byte, 1024)
	meta := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	meta[15] = 0xEE
	require.NoError(t, ns.Write(2, 2, data, meta))

	gotData := make([]byte, 1024)
	gotMeta := make([]byte, 16)
	require.NoError(t, ns.Read(2, 2, gotData, gotMeta))
	assert.Equal(t, data, gotData)
	assert.Equal(t, meta, gotMeta)
	assert.NoError(t, ns.Sync())
}

func TestNamespaceRange(t *testing.T) {
	ns := NewMemoryNamespace(4, 512, 8)

	err := ns.Read(3, 2, make([]byte, 1024), make([]byte, 16))
	assert.ErrorIs(t, err, pkg.ErrLBAOutOfRange)

	err = ns.Write(0, 2, make([]byte, 512), make([]byte, 16))
	assert.ErrorIs(t, err, io.ErrShortBuffer)

	err = ns.Write(0, 2, make([]byte, 1024), make([]byte, 8))
	assert.ErrorIs(t, err, io.ErrShortBuffer)
}

func TestFileNamespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ns.img")

	ns, err := NewFileNamespace(path, 8, 512, 8)
	require.NoError(t, err)

	data := make([]byte, 512)
	data[0], data[511] = 0x11, 0x22
	meta := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, ns.Write(7, 1, data, meta))
	require.NoError(t, ns.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8*512), info.Size())
	info, err = os.Stat(path + ".meta")
	require.NoError(t, err)
	assert.Equal(t, int64(8*8), info.Size())

	ns, err = NewFileNamespace(path, 8, 512, 8)
	require.NoError(t, err)
	defer ns.Close()

	got, gotMeta := make([]byte, 512), make([]byte, 8)
	require.NoError(t, ns.Read(7, 1, got, gotMeta))
	assert.Equal(t, data, got)
	assert.Equal(t, meta, gotMeta)
}
