package device

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ardnew/prpsweep/pkg"
)

// Namespace is the block storage behind one simulated namespace. Metadata,
// when present, is kept separately from block data.
type Namespace interface {
	// BlockSize returns the logical block data size in bytes.
	BlockSize() uint32

	// BlockCount returns the total number of blocks.
	BlockCount() uint64

	// MetadataSize returns the metadata bytes per block, 0 for none.
	MetadataSize() uint16

	// Read reads blocks starting at lba into data and, when the namespace
	// carries metadata, their metadata into meta.
	Read(lba uint64, blocks uint32, data, meta []byte) error

	// Write writes blocks starting at lba from data and meta.
	Write(lba uint64, blocks uint32, data, meta []byte) error

	// Sync flushes any cached writes.
	Sync() error
}

// checkRange validates a block range against a namespace and returns the
// data and metadata byte ranges it covers.
func checkRange(ns Namespace, lba uint64, blocks uint32, data, meta []byte) (off, n, moff, mn uint64, err error) {
	if lba+uint64(blocks) > ns.BlockCount() {
		return 0, 0, 0, 0, fmt.Errorf("%w: lba %d+%d of %d", pkg.ErrLBAOutOfRange, lba, blocks, ns.BlockCount())
	}

	bs, ms := uint64(ns.BlockSize()), uint64(ns.MetadataSize())
	off, n = lba*bs, uint64(blocks)*bs
	moff, mn = lba*ms, uint64(blocks)*ms
	if uint64(len(data)) < n || uint64(len(meta)) < mn {
		return 0, 0, 0, 0, io.ErrShortBuffer
	}
	return off, n, moff, mn, nil
}

// MemoryNamespace implements Namespace in memory.
type MemoryNamespace struct {
	data      []byte
	meta      []byte
	blockSize uint32
	metaSize  uint16
	mutex     sync.RWMutex
}

// NewMemoryNamespace creates an in-memory namespace of blocks blocks.
func NewMemoryNamespace(blocks uint64, blockSize uint32, metaSize uint16) *MemoryNamespace {
	return &MemoryNamespace{
		data:      make([]byte, blocks*uint64(blockSize)),
		meta:      make([]byte, blocks*uint64(metaSize)),
		blockSize: blockSize,
		metaSize:  metaSize,
	}
}

// BlockSize returns the block size.
func (m *MemoryNamespace) BlockSize() uint32 {
	return m.blockSize
}

// BlockCount returns the number of blocks.
func (m *MemoryNamespace) BlockCount() uint64 {
	return uint64(len(m.data)) / uint64(m.blockSize)
}

// MetadataSize returns the metadata bytes per block.
func (m *MemoryNamespace) MetadataSize() uint16 {
	return m.metaSize
}

// Read reads blocks from memory.
func (m *MemoryNamespace) Read(lba uint64, blocks uint32, data, meta []byte) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	off, n, moff, mn, err := checkRange(m, lba, blocks, data, meta)
	if err != nil {
		return err
	}
	copy(data, m.data[off:off+n])
	copy(meta, m.meta[moff:moff+mn])
	return nil
}

// Write writes blocks to memory.
func (m *MemoryNamespace) Write(lba uint64, blocks uint32, data, meta []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	off, n, moff, mn, err := checkRange(m, lba, blocks, data, meta)
	if err != nil {
		return err
	}
	copy(m.data[off:off+n], data)
	copy(m.meta[moff:moff+mn], meta)
	return nil
}

// Sync is a no-op for memory namespaces.
func (m *MemoryNamespace) Sync() error {
	return nil
}

// FileNamespace implements Namespace on a file. Metadata, when configured,
// lives in a sibling file with a ".meta" suffix.
type FileNamespace struct {
	file      *os.File
	metaFile  *os.File
	blockSize uint32
	metaSize  uint16
	blocks    uint64
	mutex     sync.RWMutex
}

// NewFileNamespace opens (creating if needed) a file-backed namespace of
// blocks blocks at path.
func NewFileNamespace(path string, blocks uint64, blockSize uint32, metaSize uint16) (*FileNamespace, error) {
	file, err := openSized(path, int64(blocks*uint64(blockSize)))
	if err != nil {
		return nil, err
	}

	f := &FileNamespace{
		file:      file,
		blockSize: blockSize,
		metaSize:  metaSize,
		blocks:    blocks,
	}
	if metaSize > 0 {
		if f.metaFile, err = openSized(path+".meta", int64(blocks*uint64(metaSize))); err != nil {
			file.Close()
			return nil, err
		}
	}
	return f, nil
}

func openSized(path string, size int64) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if stat.Size() < size {
		if err := file.Truncate(size); err != nil {
			file.Close()
			return nil, err
		}
	}
	return file, nil
}

// BlockSize returns the block size.
func (f *FileNamespace) BlockSize() uint32 {
	return f.blockSize
}

// BlockCount returns the number of blocks.
func (f *FileNamespace) BlockCount() uint64 {
	return f.blocks
}

// MetadataSize returns the metadata bytes per block.
func (f *FileNamespace) MetadataSize() uint16 {
	return f.metaSize
}

// Read reads blocks from the file.
func (f *FileNamespace) Read(lba uint64, blocks uint32, data, meta []byte) error {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	off, n, moff, mn, err := checkRange(f, lba, blocks, data, meta)
	if err != nil {
		return err
	}
	if _, err := f.file.ReadAt(data[:n], int64(off)); err != nil && err != io.EOF {
		return err
	}
	if mn > 0 {
		if _, err := f.metaFile.ReadAt(meta[:mn], int64(moff)); err != nil && err != io.EOF {
			return err
		}
	}
	return nil
}

// Write writes blocks to the file.
func (f *FileNamespace) Write(lba uint64, blocks uint32, data, meta []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	off, n, moff, mn, err := checkRange(f, lba, blocks, data, meta)
	if err != nil {
		return err
	}
	if _, err := f.file.WriteAt(data[:n], int64(off)); err != nil {
		return err
	}
	if mn > 0 {
		if _, err := f.metaFile.WriteAt(meta[:mn], int64(moff)); err != nil {
			return err
		}
	}
	return nil
}

// Sync flushes file writes to disk.
func (f *FileNamespace) Sync() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if err := f.file.Sync(); err != nil {
		return err
	}
	if f.metaFile != nil {
		return f.metaFile.Sync()
	}
	return nil
}

// Close closes the underlying files.
func (f *FileNamespace) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	var err error
	if f.file != nil {
		err = f.file.Close()
		f.file = nil
	}
	if f.metaFile != nil {
		if merr := f.metaFile.Close(); err == nil {
			err = merr
		}
		f.metaFile = nil
	}
	return err
}
