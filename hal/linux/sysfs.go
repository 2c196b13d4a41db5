package linux

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ardnew/prpsweep/pkg"
)

// DefaultSysfsRoot is where block devices are described.
const DefaultSysfsRoot = "/sys/block"

// kernelPageSize is the memory page size the kernel NVMe driver programs
// into CC.MPS regardless of the host page size.
const kernelPageSize = 4096

// SysfsGeometry reports sweep geometry from the block queue limits the
// kernel publishes for a namespace. It serves when the passthrough admin
// ioctl is not permitted.
type SysfsGeometry struct {
	root string
	name string
}

// NewSysfsGeometry describes the block device name (e.g. "nvme0n1") under
// root, or [DefaultSysfsRoot] when root is empty.
func NewSysfsGeometry(root, name string) *SysfsGeometry {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsGeometry{root: root, name: filepath.Base(name)}
}

func (s *SysfsGeometry) path(elem ...string) string {
	return filepath.Join(append([]string{s.root, s.name}, elem...)...)
}

func (s *SysfsGeometry) read(elem ...string) (string, error) {
	b, err := os.ReadFile(s.path(elem...))
	if err != nil {
		return "", fmt.Errorf("%w: %w", pkg.ErrGeometryUnavailable, err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (s *SysfsGeometry) readUint(elem ...string) (uint64, error) {
	v, err := s.read(elem...)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", pkg.ErrGeometryUnavailable, s.path(elem...), err)
	}
	return n, nil
}

// PageSize returns the kernel driver's controller page size.
func (s *SysfsGeometry) PageSize() (uint64, error) {
	if _, err := os.Stat(s.path()); err != nil {
		return 0, fmt.Errorf("%w: %w", pkg.ErrGeometryUnavailable, err)
	}
	return kernelPageSize, nil
}

// UnitDataSize returns queue/logical_block_size.
func (s *SysfsGeometry) UnitDataSize() (uint64, error) {
	return s.readUint("queue", "logical_block_size")
}

// MaxTransferSize returns queue/max_hw_sectors_kb in bytes.
func (s *SysfsGeometry) MaxTransferSize() (uint64, error) {
	kb, err := s.readUint("queue", "max_hw_sectors_kb")
	if err != nil {
		return 0, err
	}
	return kb << 10, nil
}

// MetadataUnitSize returns metadata_bytes, or 0 when the kernel does not
// publish it.
func (s *SysfsGeometry) MetadataUnitSize() (uint64, error) {
	n, err := s.readUint("metadata_bytes")
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return n, err
}

// ProtectionType parses integrity/format, e.g. "T10-DIF-TYPE1-CRC".
func (s *SysfsGeometry) ProtectionType() (uint8, error) {
	format, err := s.read("integrity", "format")
	if errors.Is(err, fs.ErrNotExist) || format == "none" {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	_, typ, ok := strings.Cut(format, "TYPE")
	if !ok || typ == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(typ[:1], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: integrity format %q", pkg.ErrGeometryUnavailable, format)
	}
	return uint8(n), nil
}
