package nvme

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/prpsweep/pkg"
)

// Status is the 15-bit status field of a completion entry.
//
//	bits 7:0   status code (SC)
//	bits 10:8  status code type (SCT)
//	bit  13    more (M)
//	bit  14    do not retry (DNR)
type Status uint16

// MakeStatus builds a status from a type and code.
func MakeStatus(sct, sc uint8) Status {
	return Status(uint16(sct&0x7)<<8 | uint16(sc))
}

// SC returns the status code.
func (s Status) SC() uint8 {
	return uint8(s)
}

// SCT returns the status code type.
func (s Status) SCT() uint8 {
	return uint8(s>>8) & 0x7
}

// DNR reports whether the controller marked the command as not retryable.
func (s Status) DNR() bool {
	return s&(1<<14) != 0
}

// WithDNR returns s with the do-not-retry bit set.
func (s Status) WithDNR() Status {
	return s | 1<<14
}

// Success reports whether the status is a successful completion.
func (s Status) Success() bool {
	return s.SCT() == SCTGeneric && s.SC() == SCSuccess
}

// CommandStatus classifies s for the host.
func (s Status) CommandStatus() pkg.CommandStatus {
	if s.SCT() != SCTGeneric {
		return pkg.CommandStatusError
	}
	switch s.SC() {
	case SCSuccess:
		return pkg.CommandStatusSuccess
	case SCInvalidOpcode:
		return pkg.CommandStatusInvalidOpcode
	case SCInvalidField, SCPRPOffsetInvalid, SCInvalidNamespace:
		return pkg.CommandStatusInvalidField
	case SCDataTransferError:
		return pkg.CommandStatusDataTransfer
	case SCAbortRequested:
		return pkg.CommandStatusAborted
	case SCLBAOutOfRange, SCCapacityExceeded:
		return pkg.CommandStatusOutOfRange
	default:
		return pkg.CommandStatusError
	}
}

// Err returns nil for a successful status and a *StatusError otherwise.
func (s Status) Err() error {
	if s.Success() {
		return nil
	}
	return &StatusError{Status: s}
}

// String returns the status as "sct/sc".
func (s Status) String() string {
	return fmt.Sprintf("sct=%#x sc=%#02x", s.SCT(), s.SC())
}

// StatusError reports a non-successful completion.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion status %s (%s)", e.Status, e.Status.CommandStatus())
}

// Unwrap returns the pkg sentinel matching the status class.
func (e *StatusError) Unwrap() error {
	return e.Status.CommandStatus().Error()
}

// Completion is a 16-byte completion queue entry.
type Completion struct {
	DW0    uint32 // Command specific
	SQHead uint16 // Submission queue head pointer
	SQID   uint16 // Submission queue identifier
	CID    uint16 // Command identifier
	Phase  bool   // Phase tag
	Status Status // Status field
}

// MarshalTo writes the completion to buf in little-endian order.
// Returns the number of bytes written, or 0 if buf is too small.
func (c *Completion) MarshalTo(buf []byte) int {
	if len(buf) < CompletionSize {
		return 0
	}

	binary.LittleEndian.PutUint32(buf[0:4], c.DW0)
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	binary.LittleEndian.PutUint16(buf[8:10], c.SQHead)
	binary.LittleEndian.PutUint16(buf[10:12], c.SQID)
	binary.LittleEndian.PutUint16(buf[12:14], c.CID)

	sf := uint16(c.Status) << 1
	if c.Phase {
		sf |= 1
	}
	binary.LittleEndian.PutUint16(buf[14:16], sf)

	return CompletionSize
}

// ParseCompletion parses a completion queue entry from raw bytes.
// Returns false if data is too short.
func ParseCompletion(data []byte, out *Completion) bool {
	if len(data) < CompletionSize {
		return false
	}

	out.DW0 = binary.LittleEndian.Uint32(data[0:4])
	out.SQHead = binary.LittleEndian.Uint16(data[8:10])
	out.SQID = binary.LittleEndian.Uint16(data[10:12])
	out.CID = binary.LittleEndian.Uint16(data[12:14])

	sf := binary.LittleEndian.Uint16(data[14:16])
	out.Phase = sf&1 != 0
	out.Status = Status(sf >> 1)

	return true
}

// PhaseOf returns the phase tag of a raw completion entry without parsing
// the rest of it.
func PhaseOf(data []byte) bool {
	return len(data) >= CompletionSize && data[14]&1 != 0
}
