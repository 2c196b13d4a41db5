package sweep

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/ardnew/prpsweep/pkg"
)

// Geometry is the set of device properties the sweep is planned against.
type Geometry struct {
	PageSize         uint64 // Memory page size in bytes, a power of two
	UnitDataSize     uint64 // Logical block data size in bytes
	MaxTransferSize  uint64 // Per-command ceiling in bytes; 0 = unlimited
	MetadataUnitSize uint64 // Separate metadata bytes per block; 0 = none
	ProtectionType   uint8  // End-to-end protection type; 0 = none
}

// Validate reports whether the geometry can be planned against.
func (g Geometry) Validate() error {
	if g.PageSize == 0 || g.PageSize&(g.PageSize-1) != 0 {
		return fmt.Errorf("%w: page size %d not a power of two",
			pkg.ErrGeometryUnavailable, g.PageSize)
	}
	if g.UnitDataSize == 0 {
		return fmt.Errorf("%w: zero LBA data size", pkg.ErrGeometryUnavailable)
	}
	return nil
}

// Testable reports whether at least one block fits in a page.
func (g Geometry) Testable() bool {
	return g.PageSize >= g.UnitDataSize
}

// LastOffset returns the largest first-page offset at which one block still
// fits in the page.
func (g Geometry) LastOffset() uint64 {
	if !g.Testable() {
		return 0
	}
	return g.PageSize - g.UnitDataSize
}

// String returns a compact description of the geometry.
func (g Geometry) String() string {
	mdts := "unlimited"
	if g.MaxTransferSize > 0 {
		mdts = humanize.IBytes(g.MaxTransferSize)
	}
	return fmt.Sprintf("page=%s lba=%s mdts=%s meta=%d pi=%d",
		humanize.IBytes(g.PageSize), humanize.IBytes(g.UnitDataSize),
		mdts, g.MetadataUnitSize, g.ProtectionType)
}

// LoadGeometry reads and validates the geometry reported by src. When src
// also implements ProtectionSource its protection type is recorded.
func LoadGeometry(src GeometrySource) (Geometry, error) {
	var (
		g   Geometry
		err error
	)

	if g.PageSize, err = src.PageSize(); err != nil {
		return g, geometryError("page size", err)
	}
	if g.UnitDataSize, err = src.UnitDataSize(); err != nil {
		return g, geometryError("LBA data size", err)
	}
	if g.MaxTransferSize, err = src.MaxTransferSize(); err != nil {
		return g, geometryError("max transfer size", err)
	}
	if g.MetadataUnitSize, err = src.MetadataUnitSize(); err != nil {
		return g, geometryError("metadata size", err)
	}
	if ps, ok := src.(ProtectionSource); ok {
		if g.ProtectionType, err = ps.ProtectionType(); err != nil {
			return g, geometryError("protection type", err)
		}
	}

	return g, g.Validate()
}

// geometryError wraps err as ErrGeometryUnavailable unless it already names
// an unsupported namespace feature.
func geometryError(what string, err error) error {
	if errors.Is(err, pkg.ErrUnsupportedNamespaceFeature) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %w", pkg.ErrGeometryUnavailable, what, err)
}

// StaticSource is a GeometrySource and ProtectionSource reporting a fixed
// geometry.
type StaticSource struct {
	Geometry Geometry
}

// PageSize implements GeometrySource.
func (s StaticSource) PageSize() (uint64, error) { return s.Geometry.PageSize, nil }

// UnitDataSize implements GeometrySource.
func (s StaticSource) UnitDataSize() (uint64, error) { return s.Geometry.UnitDataSize, nil }

// MaxTransferSize implements GeometrySource.
func (s StaticSource) MaxTransferSize() (uint64, error) { return s.Geometry.MaxTransferSize, nil }

// MetadataUnitSize implements GeometrySource.
func (s StaticSource) MetadataUnitSize() (uint64, error) { return s.Geometry.MetadataUnitSize, nil }

// ProtectionType implements ProtectionSource.
func (s StaticSource) ProtectionType() (uint8, error) { return s.Geometry.ProtectionType, nil }
