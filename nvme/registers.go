package nvme

// Capabilities is the decoded controller capabilities (CAP) register.
type Capabilities struct {
	MQES   uint16 // Maximum queue entries supported, zero based
	CQR    bool   // Contiguous queues required
	TO     uint8  // Ready timeout in 500 ms units
	DSTRD  uint8  // Doorbell stride, 2^(2+DSTRD) bytes
	CSS    uint8  // Command sets supported
	MPSMIN uint8  // Memory page size minimum, 2^(12+MPSMIN)
	MPSMAX uint8  // Memory page size maximum, 2^(12+MPSMAX)
}

// ParseCapabilities decodes a CAP register value.
func ParseCapabilities(v uint64) Capabilities {
	return Capabilities{
		MQES:   uint16(v),
		CQR:    v&(1<<16) != 0,
		TO:     uint8(v >> 24),
		DSTRD:  uint8(v>>32) & 0xF,
		CSS:    uint8(v >> 37),
		MPSMIN: uint8(v>>48) & 0xF,
		MPSMAX: uint8(v>>52) & 0xF,
	}
}

// Value encodes the capabilities as a CAP register value.
func (c Capabilities) Value() uint64 {
	v := uint64(c.MQES) |
		uint64(c.TO)<<24 |
		uint64(c.DSTRD&0xF)<<32 |
		uint64(c.CSS)<<37 |
		uint64(c.MPSMIN&0xF)<<48 |
		uint64(c.MPSMAX&0xF)<<52
	if c.CQR {
		v |= 1 << 16
	}
	return v
}

// MinPageSize returns the smallest memory page size the controller supports.
func (c Capabilities) MinPageSize() uint64 {
	return PageSizeFromMPS(c.MPSMIN)
}

// MaxPageSize returns the largest memory page size the controller supports.
func (c Capabilities) MaxPageSize() uint64 {
	return PageSizeFromMPS(c.MPSMAX)
}

// Config is the decoded controller configuration (CC) register.
type Config struct {
	Enable bool  // EN
	CSS    uint8 // I/O command set selected
	MPS    uint8 // Memory page size, 2^(12+MPS)
	AMS    uint8 // Arbitration mechanism selected
	IOSQES uint8 // I/O submission queue entry size, 2^n
	IOCQES uint8 // I/O completion queue entry size, 2^n
}

// ParseConfig decodes a CC register value.
func ParseConfig(v uint32) Config {
	return Config{
		Enable: v&CCEnable != 0,
		CSS:    uint8(v>>CCCSSShift) & 0x7,
		MPS:    uint8(v>>CCMPSShift) & 0xF,
		AMS:    uint8(v>>CCAMSShift) & 0x7,
		IOSQES: uint8(v>>CCIOSQESShift) & 0xF,
		IOCQES: uint8(v>>CCIOCQESShift) & 0xF,
	}
}

// Value encodes the configuration as a CC register value.
func (c Config) Value() uint32 {
	v := uint32(c.CSS&0x7)<<CCCSSShift |
		uint32(c.MPS&0xF)<<CCMPSShift |
		uint32(c.AMS&0x7)<<CCAMSShift |
		uint32(c.IOSQES&0xF)<<CCIOSQESShift |
		uint32(c.IOCQES&0xF)<<CCIOCQESShift
	if c.Enable {
		v |= CCEnable
	}
	return v
}

// PageSize returns the memory page size selected by MPS.
func (c Config) PageSize() uint64 {
	return PageSizeFromMPS(c.MPS)
}

// SubmissionDoorbell returns the register offset of the tail doorbell of
// submission queue qid.
func SubmissionDoorbell(qid uint16, dstrd uint8) uint32 {
	return RegDoorbellBase + uint32(2*qid)*(4<<dstrd)
}

// CompletionDoorbell returns the register offset of the head doorbell of
// completion queue qid.
func CompletionDoorbell(qid uint16, dstrd uint8) uint32 {
	return RegDoorbellBase + uint32(2*qid+1)*(4<<dstrd)
}
