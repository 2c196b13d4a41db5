package nvme

import (
	"encoding/binary"
	"strings"
)

// IdentifyController holds the Identify Controller fields used by the sweep.
type IdentifyController struct {
	VendorID     uint16   // PCI vendor ID (VID)
	SubVendorID  uint16   // PCI subsystem vendor ID (SSVID)
	SerialNumber [20]byte // Serial number (SN), ASCII space padded
	ModelNumber  [40]byte // Model number (MN), ASCII space padded
	Firmware     [8]byte  // Firmware revision (FR), ASCII space padded
	MDTS         uint8    // Max data transfer size, 2^n units of CAP.MPSMIN; 0 = unlimited
	ControllerID uint16   // Controller ID (CNTLID)
	Version      uint32   // Version (VER)
	SQES         uint8    // Submission queue entry size, required (3:0) and max (7:4)
	CQES         uint8    // Completion queue entry size, required (3:0) and max (7:4)
	NN           uint32   // Number of namespaces
}

// MarshalTo writes the structure to an Identify page.
// Returns the number of bytes written, or 0 if buf is too small.
func (c *IdentifyController) MarshalTo(buf []byte) int {
	if len(buf) < IdentifySize {
		return 0
	}
	clear(buf[:IdentifySize])

	binary.LittleEndian.PutUint16(buf[0:2], c.VendorID)
	binary.LittleEndian.PutUint16(buf[2:4], c.SubVendorID)
	copy(buf[4:24], c.SerialNumber[:])
	copy(buf[24:64], c.ModelNumber[:])
	copy(buf[64:72], c.Firmware[:])
	buf[77] = c.MDTS
	binary.LittleEndian.PutUint16(buf[78:80], c.ControllerID)
	binary.LittleEndian.PutUint32(buf[80:84], c.Version)
	buf[512] = c.SQES
	buf[513] = c.CQES
	binary.LittleEndian.PutUint32(buf[516:520], c.NN)

	return IdentifySize
}

// ParseIdentifyController parses an Identify Controller page.
// Returns false if data is too short.
func ParseIdentifyController(data []byte, out *IdentifyController) bool {
	if len(data) < IdentifySize {
		return false
	}

	out.VendorID = binary.LittleEndian.Uint16(data[0:2])
	out.SubVendorID = binary.LittleEndian.Uint16(data[2:4])
	copy(out.SerialNumber[:], data[4:24])
	copy(out.ModelNumber[:], data[24:64])
	copy(out.Firmware[:], data[64:72])
	out.MDTS = data[77]
	out.ControllerID = binary.LittleEndian.Uint16(data[78:80])
	out.Version = binary.LittleEndian.Uint32(data[80:84])
	out.SQES = data[512]
	out.CQES = data[513]
	out.NN = binary.LittleEndian.Uint32(data[516:520])

	return true
}

// MaxTransferSize returns the transfer ceiling in bytes given the minimum
// memory page size, or 0 when the controller reports no limit.
func (c *IdentifyController) MaxTransferSize(minPageSize uint64) uint64 {
	if c.MDTS == 0 {
		return 0
	}
	return minPageSize << c.MDTS
}

// Serial returns the serial number with padding removed.
func (c *IdentifyController) Serial() string {
	return strings.TrimSpace(string(c.SerialNumber[:]))
}

// Model returns the model number with padding removed.
func (c *IdentifyController) Model() string {
	return strings.TrimSpace(string(c.ModelNumber[:]))
}

// LBAFormat describes one supported logical block format.
type LBAFormat struct {
	MS    uint16 // Metadata bytes per LBA
	LBADS uint8  // LBA data size, 2^n bytes
	RP    uint8  // Relative performance
}

// MinLBADS is the smallest LBA data size exponent a format may report.
// Values below it mean the format is not supported.
const MinLBADS = 9

// DataSize returns the LBA data size in bytes, or 0 if the format is not
// supported.
func (f LBAFormat) DataSize() uint64 {
	if f.LBADS < MinLBADS || f.LBADS > 63 {
		return 0
	}
	return uint64(1) << f.LBADS
}

// NamespaceKind classifies a namespace by how it carries metadata.
type NamespaceKind int

// Namespace kinds.
const (
	NamespaceBare NamespaceKind = iota // No metadata
	NamespaceMeta                      // Metadata without protection information
	NamespaceE2E                       // End-to-end protection information enabled
)

// String returns the namespace kind name.
func (k NamespaceKind) String() string {
	switch k {
	case NamespaceBare:
		return "bare"
	case NamespaceMeta:
		return "meta"
	case NamespaceE2E:
		return "e2e"
	default:
		return "unknown"
	}
}

// IdentifyNamespace holds the Identify Namespace fields used by the sweep.
type IdentifyNamespace struct {
	NSZE   uint64        // Namespace size in LBAs
	NCAP   uint64        // Namespace capacity in LBAs
	NUSE   uint64        // Namespace utilization in LBAs
	NSFEAT uint8         // Namespace features
	NLBAF  uint8         // Number of LBA formats, zero based
	FLBAS  uint8         // Formatted LBA size
	MC     uint8         // Metadata capabilities
	DPC    uint8         // End-to-end data protection capabilities
	DPS    uint8         // End-to-end data protection type settings
	NGUID  [16]byte      // Namespace globally unique identifier
	EUI64  [8]byte       // IEEE extended unique identifier
	LBAF   [16]LBAFormat // Supported LBA formats
}

// MarshalTo writes the structure to an Identify page.
// Returns the number of bytes written, or 0 if buf is too small.
func (n *IdentifyNamespace) MarshalTo(buf []byte) int {
	if len(buf) < IdentifySize {
		return 0
	}
	clear(buf[:IdentifySize])

	binary.LittleEndian.PutUint64(buf[0:8], n.NSZE)
	binary.LittleEndian.PutUint64(buf[8:16], n.NCAP)
	binary.LittleEndian.PutUint64(buf[16:24], n.NUSE)
	buf[24] = n.NSFEAT
	buf[25] = n.NLBAF
	buf[26] = n.FLBAS
	buf[27] = n.MC
	buf[28] = n.DPC
	buf[29] = n.DPS
	copy(buf[104:120], n.NGUID[:])
	copy(buf[120:128], n.EUI64[:])
	for i, f := range n.LBAF {
		off := 128 + 4*i
		binary.LittleEndian.PutUint16(buf[off:off+2], f.MS)
		buf[off+2] = f.LBADS
		buf[off+3] = f.RP & 0x3
	}

	return IdentifySize
}

// ParseIdentifyNamespace parses an Identify Namespace page.
// Returns false if data is too short.
func ParseIdentifyNamespace(data []byte, out *IdentifyNamespace) bool {
	if len(data) < IdentifySize {
		return false
	}

	out.NSZE = binary.LittleEndian.Uint64(data[0:8])
	out.NCAP = binary.LittleEndian.Uint64(data[8:16])
	out.NUSE = binary.LittleEndian.Uint64(data[16:24])
	out.NSFEAT = data[24]
	out.NLBAF = data[25]
	out.FLBAS = data[26]
	out.MC = data[27]
	out.DPC = data[28]
	out.DPS = data[29]
	copy(out.NGUID[:], data[104:120])
	copy(out.EUI64[:], data[120:128])
	for i := range out.LBAF {
		off := 128 + 4*i
		out.LBAF[i] = LBAFormat{
			MS:    binary.LittleEndian.Uint16(data[off : off+2]),
			LBADS: data[off+2],
			RP:    data[off+3] & 0x3,
		}
	}

	return true
}

// ActiveFormat returns the LBA format selected by FLBAS.
func (n *IdentifyNamespace) ActiveFormat() LBAFormat {
	return n.LBAF[n.FLBAS&FLBASFormatMask]
}

// ExtendedLBA reports whether metadata is interleaved with each LBA rather
// than carried in a separate buffer.
func (n *IdentifyNamespace) ExtendedLBA() bool {
	return n.FLBAS&FLBASExtended != 0
}

// ProtectionType returns the enabled protection information type (0 = none).
func (n *IdentifyNamespace) ProtectionType() uint8 {
	return n.DPS & DPSTypeMask
}

// Kind classifies the namespace from its active format and DPS.
func (n *IdentifyNamespace) Kind() NamespaceKind {
	switch {
	case n.ProtectionType() != 0:
		return NamespaceE2E
	case n.ActiveFormat().MS != 0:
		return NamespaceMeta
	default:
		return NamespaceBare
	}
}

// PadString returns s truncated or space padded to n bytes.
func PadString(s string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}
