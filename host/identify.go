package host

import (
	"fmt"

	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
)

// Identifier reports sweep geometry from the identify data and registers
// captured when a Driver started.
type Identifier struct {
	capabilities nvme.Capabilities
	config       nvme.Config
	controller   nvme.IdentifyController
	namespace    nvme.IdentifyNamespace
}

// NewIdentifier returns an Identifier over the given controller state.
func NewIdentifier(capabilities nvme.Capabilities, config nvme.Config,
	controller nvme.IdentifyController, namespace nvme.IdentifyNamespace,
) *Identifier {
	return &Identifier{
		capabilities: capabilities,
		config:       config,
		controller:   controller,
		namespace:    namespace,
	}
}

// PageSize returns the page size selected by CC.MPS.
func (i *Identifier) PageSize() (uint64, error) {
	return i.config.PageSize(), nil
}

// UnitDataSize returns the active LBA format's data size.
func (i *Identifier) UnitDataSize() (uint64, error) {
	size := i.namespace.ActiveFormat().DataSize()
	if size == 0 {
		return 0, fmt.Errorf("%w: LBA format %d has no data size",
			pkg.ErrGeometryUnavailable, i.namespace.FLBAS&nvme.FLBASFormatMask)
	}
	return size, nil
}

// MaxTransferSize returns the MDTS ceiling in units of CAP.MPSMIN.
func (i *Identifier) MaxTransferSize() (uint64, error) {
	return i.controller.MaxTransferSize(i.capabilities.MinPageSize()), nil
}

// MetadataUnitSize returns the separate metadata bytes per block. Metadata
// interleaved with each block (extended LBA) is not supported.
func (i *Identifier) MetadataUnitSize() (uint64, error) {
	f := i.namespace.ActiveFormat()
	if f.MS != 0 && i.namespace.ExtendedLBA() {
		return 0, fmt.Errorf("%w: extended LBA metadata", pkg.ErrUnsupportedNamespaceFeature)
	}
	return uint64(f.MS), nil
}

// ProtectionType returns the namespace protection information type.
func (i *Identifier) ProtectionType() (uint8, error) {
	return i.namespace.ProtectionType(), nil
}

// Controller returns the captured Identify Controller data.
func (i *Identifier) Controller() nvme.IdentifyController {
	return i.controller
}

// Namespace returns the captured Identify Namespace data.
func (i *Identifier) Namespace() nvme.IdentifyNamespace {
	return i.namespace
}
