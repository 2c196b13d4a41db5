package hal

import (
	"context"

	"github.com/ardnew/prpsweep/nvme"
)

// HAL is the hardware abstraction of one NVMe controller.
//
// The host driver owns host memory for the I/O queues and the controller
// reaches it by bus address. Register offsets are those of the controller
// register map (nvme.RegCAP, nvme.RegCC, doorbells from
// nvme.SubmissionDoorbell and nvme.CompletionDoorbell).
type HAL interface {
	// Lifecycle

	// Init prepares the controller for register access.
	// The context can be used to cancel initialization.
	Init(ctx context.Context) error

	// Close releases all resources associated with the HAL.
	// After Close returns, the HAL should not be used.
	Close() error

	// Register Access

	// ReadRegister32 reads a 32-bit controller register.
	ReadRegister32(offset uint32) (uint32, error)

	// WriteRegister32 writes a 32-bit controller register. Writing a
	// doorbell register notifies the controller of new queue entries.
	WriteRegister32(offset uint32, value uint32) error

	// ReadRegister64 reads a 64-bit controller register.
	ReadRegister64(offset uint32) (uint64, error)

	// WriteRegister64 writes a 64-bit controller register.
	WriteRegister64(offset uint32, value uint64) error

	// Admin Commands

	// AdminCommand executes an admin command synchronously and returns its
	// completion. Data-bearing commands reference host memory through
	// PRP1. The admin queue is owned by the HAL.
	AdminCommand(ctx context.Context, cmd *nvme.Command) (nvme.Completion, error)

	// Interrupts

	// WaitInterrupt blocks until the controller raises vector or ctx is
	// done. Interrupts raised while nobody waits are coalesced into one.
	WaitInterrupt(ctx context.Context, vector uint16) error
}
