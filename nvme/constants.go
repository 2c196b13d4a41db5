package nvme

// Queue entry sizes.
const (
	CommandSize    = 64   // Submission queue entry size in bytes
	CompletionSize = 16   // Completion queue entry size in bytes
	IdentifySize   = 4096 // Identify data structure size in bytes

	// log2 of the entry sizes, as programmed into CC.IOSQES and CC.IOCQES.
	CommandSizeShift    = 6
	CompletionSizeShift = 4
)

// NVM command set opcodes.
const (
	OpFlush = 0x00 // Flush volatile write cache
	OpWrite = 0x01 // Write logical blocks
	OpRead  = 0x02 // Read logical blocks
)

// Admin command set opcodes.
const (
	AdminDeleteIOSQ = 0x00 // Delete I/O submission queue
	AdminCreateIOSQ = 0x01 // Create I/O submission queue
	AdminDeleteIOCQ = 0x04 // Delete I/O completion queue
	AdminCreateIOCQ = 0x05 // Create I/O completion queue
	AdminIdentify   = 0x06 // Identify
)

// Identify CNS values.
const (
	CNSNamespace  = 0x00 // Identify namespace
	CNSController = 0x01 // Identify controller
)

// Status code types.
const (
	SCTGeneric         = 0x0 // Generic command status
	SCTCommandSpecific = 0x1 // Command specific status
	SCTMediaError      = 0x2 // Media and data integrity errors
)

// Generic command status codes (SCT 0).
const (
	SCSuccess           = 0x00 // Successful completion
	SCInvalidOpcode     = 0x01 // Invalid command opcode
	SCInvalidField      = 0x02 // Invalid field in command
	SCCommandIDConflict = 0x03 // Command ID conflict
	SCDataTransferError = 0x04 // Data transfer error
	SCInternalError     = 0x06 // Internal error
	SCAbortRequested    = 0x07 // Command abort requested
	SCInvalidNamespace  = 0x0B // Invalid namespace or format
	SCPRPOffsetInvalid  = 0x13 // PRP offset invalid
	SCLBAOutOfRange     = 0x80 // LBA out of range
	SCCapacityExceeded  = 0x81 // Capacity exceeded
	SCNamespaceNotReady = 0x82 // Namespace not ready
)

// Command specific status codes (SCT 1).
const (
	SCCompletionQueueInvalid = 0x00 // Completion queue invalid
	SCInvalidQueueID         = 0x01 // Invalid queue identifier
	SCInvalidQueueSize       = 0x02 // Invalid queue size
	SCInvalidQueueDeletion   = 0x0C // Invalid queue deletion
)

// Media and data integrity status codes (SCT 2).
const (
	SCWriteFault      = 0x80 // Write fault
	SCUnrecoveredRead = 0x81 // Unrecovered read error
)

// Controller register offsets.
const (
	RegCAP   = 0x00 // Controller capabilities (64-bit)
	RegVS    = 0x08 // Version
	RegINTMS = 0x0C // Interrupt mask set
	RegINTMC = 0x10 // Interrupt mask clear
	RegCC    = 0x14 // Controller configuration
	RegCSTS  = 0x1C // Controller status
	RegAQA   = 0x24 // Admin queue attributes
	RegASQ   = 0x28 // Admin submission queue base (64-bit)
	RegACQ   = 0x30 // Admin completion queue base (64-bit)

	RegDoorbellBase = 0x1000 // First doorbell register
)

// Controller configuration (CC) fields.
const (
	CCEnable      = 1 << 0 // EN
	CCCSSShift    = 4      // I/O command set selected
	CCMPSShift    = 7      // Memory page size, 2^(12+MPS)
	CCAMSShift    = 11     // Arbitration mechanism
	CCIOSQESShift = 16     // I/O submission queue entry size
	CCIOCQESShift = 20     // I/O completion queue entry size
	CCCSSNVM      = 0      // NVM command set
)

// Controller status (CSTS) fields.
const (
	CSTSReady = 1 << 0 // RDY
	CSTSFatal = 1 << 1 // CFS
)

// Version values.
const (
	Version10 = 0x00010000 // NVM Express 1.0
	Version11 = 0x00010100 // NVM Express 1.1
)

// Namespace format bits.
const (
	FLBASFormatMask = 0x0F // Active LBA format index
	FLBASExtended   = 0x10 // Metadata transferred at the end of each LBA
	DPSTypeMask     = 0x07 // Protection information type
)

// MinPageShift is log2 of the smallest memory page size (4 KiB).
const MinPageShift = 12

// PageSizeFromMPS returns the memory page size selected by an MPS value.
func PageSizeFromMPS(mps uint8) uint64 {
	return uint64(1) << (uint(mps) + MinPageShift)
}

// MPSFromPageSize returns the MPS encoding of a page size, and false when
// the size is not a power of two of at least 4 KiB.
func MPSFromPageSize(pageSize uint64) (uint8, bool) {
	if pageSize < 1<<MinPageShift || pageSize&(pageSize-1) != 0 {
		return 0, false
	}
	var mps uint8
	for PageSizeFromMPS(mps) != pageSize {
		mps++
	}
	return mps, true
}
