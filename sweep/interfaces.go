package sweep

import (
	"context"

	"github.com/ardnew/prpsweep/nvme"
)

// GeometrySource reports the controller and namespace properties that bound
// the sweep. It is consulted once at the start of each run.
type GeometrySource interface {
	// PageSize returns the configured memory page size (CC.MPS) in bytes.
	PageSize() (uint64, error)

	// UnitDataSize returns the logical block data size (LBADS) in bytes.
	UnitDataSize() (uint64, error)

	// MaxTransferSize returns the per-command transfer ceiling in bytes,
	// or 0 when the controller reports no limit.
	MaxTransferSize() (uint64, error)

	// MetadataUnitSize returns the separate metadata bytes per logical
	// block, or 0 when the namespace carries none.
	MetadataUnitSize() (uint64, error)
}

// ProtectionSource is implemented by geometry sources that can report the
// namespace end-to-end protection type.
type ProtectionSource interface {
	// ProtectionType returns the enabled protection information type,
	// or 0 when protection is disabled.
	ProtectionType() (uint8, error)
}

// Transport submits one command and blocks until its completion arrives or
// ctx is done. Implementations assign the command identifier.
type Transport interface {
	Submit(ctx context.Context, cmd *nvme.Command) (nvme.Completion, error)
}

// DiagnosticSink persists a buffer under a label and returns a reference to
// the stored artifact.
type DiagnosticSink interface {
	Dump(data []byte, label string) (string, error)
}
