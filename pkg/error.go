package pkg

import "errors"

// Sweep outcome errors. Every one of these aborts a sweep.
var (
	// ErrGeometryUnavailable indicates the page size, LBA data size, or
	// transfer ceiling could not be read or is unusable.
	ErrGeometryUnavailable = errors.New("device geometry unavailable")

	// ErrTransportFailure indicates a command could not be submitted or
	// completed with a non-success status.
	ErrTransportFailure = errors.New("transport failure")

	// ErrDataMiscompare indicates read data differs from written data.
	ErrDataMiscompare = errors.New("data miscompare")

	// ErrMetadataMiscompare indicates read metadata differs from written metadata.
	ErrMetadataMiscompare = errors.New("metadata miscompare")

	// ErrUnsupportedNamespaceFeature indicates the namespace uses a format
	// the sweep does not implement, such as end-to-end protection.
	ErrUnsupportedNamespaceFeature = errors.New("unsupported namespace feature")
)

// Transport and controller errors.
var (
	// ErrTimeout indicates a command did not complete in time.
	ErrTimeout = errors.New("command timeout")

	// ErrAborted indicates the controller aborted the command.
	ErrAborted = errors.New("command aborted")

	// ErrInvalidOpcode indicates the controller rejected the opcode.
	ErrInvalidOpcode = errors.New("invalid command opcode")

	// ErrInvalidField indicates the controller rejected a command field.
	ErrInvalidField = errors.New("invalid field in command")

	// ErrDataTransfer indicates the controller could not move payload bytes.
	ErrDataTransfer = errors.New("data transfer error")

	// ErrLBAOutOfRange indicates the command addressed blocks beyond the namespace.
	ErrLBAOutOfRange = errors.New("LBA out of range")

	// ErrQueueFull indicates the submission queue has no free slot.
	ErrQueueFull = errors.New("submission queue full")

	// ErrNoNamespace indicates the namespace identifier is not active.
	ErrNoNamespace = errors.New("namespace not present")

	// ErrNotReady indicates the controller did not become ready.
	ErrNotReady = errors.New("controller not ready")
)

// General errors.
var (
	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrAlreadyRunning indicates the component is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrNotRunning indicates the component is not running.
	ErrNotRunning = errors.New("not running")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrBadAddress indicates a bus address does not resolve to host memory.
	ErrBadAddress = errors.New("bad bus address")
)

// CommandStatus represents the host-visible outcome of a command.
type CommandStatus int

// Command status values.
const (
	CommandStatusSuccess       CommandStatus = iota // Completed successfully
	CommandStatusError                              // Failed with an unclassified status
	CommandStatusTimeout                            // No completion arrived in time
	CommandStatusAborted                            // Aborted by the controller
	CommandStatusInvalidOpcode                      // Opcode rejected
	CommandStatusInvalidField                       // Field rejected
	CommandStatusDataTransfer                       // Payload could not be moved
	CommandStatusOutOfRange                         // LBA range exceeds namespace
)

// String returns a string representation of the command status.
func (s CommandStatus) String() string {
	switch s {
	case CommandStatusSuccess:
		return "success"
	case CommandStatusError:
		return "error"
	case CommandStatusTimeout:
		return "timeout"
	case CommandStatusAborted:
		return "aborted"
	case CommandStatusInvalidOpcode:
		return "invalid-opcode"
	case CommandStatusInvalidField:
		return "invalid-field"
	case CommandStatusDataTransfer:
		return "data-transfer"
	case CommandStatusOutOfRange:
		return "out-of-range"
	default:
		return "unknown"
	}
}

// Error returns the corresponding error for the command status.
func (s CommandStatus) Error() error {
	switch s {
	case CommandStatusSuccess:
		return nil
	case CommandStatusTimeout:
		return ErrTimeout
	case CommandStatusAborted:
		return ErrAborted
	case CommandStatusInvalidOpcode:
		return ErrInvalidOpcode
	case CommandStatusInvalidField:
		return ErrInvalidField
	case CommandStatusDataTransfer:
		return ErrDataTransfer
	case CommandStatusOutOfRange:
		return ErrLBAOutOfRange
	default:
		return ErrTransportFailure
	}
}
