package nvme

import (
	"encoding/binary"
	"fmt"
)

// Command is a 64-byte submission queue entry held as sixteen dwords.
//
//	CDW0      opcode, fused operation, PSDT, command identifier
//	CDW1      namespace identifier
//	CDW4-5    metadata pointer (MPTR)
//	CDW6-7    PRP entry 1
//	CDW8-9    PRP entry 2
//	CDW10-15  command specific
type Command struct {
	dw [16]uint32
}

// NewCommand returns a command with the given opcode and namespace.
func NewCommand(opcode uint8, nsid uint32) *Command {
	c := &Command{}
	c.SetOpcode(opcode)
	c.SetNSID(nsid)
	return c
}

// MaxBlockCount is the largest block count the zero-based NLB field can
// express.
const MaxBlockCount = 1 << 16

// NewWrite returns a Write command for nlb+1 blocks starting at slba.
func NewWrite(nsid uint32, slba uint64, nlb uint16) *Command {
	c := NewCommand(OpWrite, nsid)
	c.SetSLBA(slba)
	c.SetNLB(nlb)
	return c
}

// NewRead returns a Read command for nlb+1 blocks starting at slba.
func NewRead(nsid uint32, slba uint64, nlb uint16) *Command {
	c := NewCommand(OpRead, nsid)
	c.SetSLBA(slba)
	c.SetNLB(nlb)
	return c
}

// Dword returns command dword i (0-15).
func (c *Command) Dword(i int) uint32 {
	return c.dw[i]
}

// SetDword sets command dword i (0-15) to value.
func (c *Command) SetDword(value uint32, i int) {
	c.dw[i] = value
}

// Opcode returns the command opcode.
func (c *Command) Opcode() uint8 {
	return uint8(c.dw[0])
}

// SetOpcode sets the command opcode.
func (c *Command) SetOpcode(op uint8) {
	c.dw[0] = c.dw[0]&^0xFF | uint32(op)
}

// CID returns the command identifier.
func (c *Command) CID() uint16 {
	return uint16(c.dw[0] >> 16)
}

// SetCID sets the command identifier.
func (c *Command) SetCID(cid uint16) {
	c.dw[0] = c.dw[0]&0xFFFF | uint32(cid)<<16
}

// PSDT returns the PRP or SGL selector (0 selects PRPs).
func (c *Command) PSDT() uint8 {
	return uint8(c.dw[0]>>14) & 0x3
}

// NSID returns the namespace identifier.
func (c *Command) NSID() uint32 {
	return c.dw[1]
}

// SetNSID sets the namespace identifier.
func (c *Command) SetNSID(nsid uint32) {
	c.dw[1] = nsid
}

// MPTR returns the metadata pointer.
func (c *Command) MPTR() uint64 {
	return c.qword(4)
}

// SetMPTR sets the metadata pointer.
func (c *Command) SetMPTR(addr uint64) {
	c.setQword(4, addr)
}

// PRP1 returns PRP entry 1.
func (c *Command) PRP1() uint64 {
	return c.qword(6)
}

// SetPRP1 sets PRP entry 1.
func (c *Command) SetPRP1(addr uint64) {
	c.setQword(6, addr)
}

// PRP2 returns PRP entry 2.
func (c *Command) PRP2() uint64 {
	return c.qword(8)
}

// SetPRP2 sets PRP entry 2.
func (c *Command) SetPRP2(addr uint64) {
	c.setQword(8, addr)
}

// SLBA returns the starting LBA of a read or write.
func (c *Command) SLBA() uint64 {
	return c.qword(10)
}

// SetSLBA sets the starting LBA of a read or write.
func (c *Command) SetSLBA(slba uint64) {
	c.setQword(10, slba)
}

// NLB returns the zero-based number of logical blocks of a read or write.
func (c *Command) NLB() uint16 {
	return uint16(c.dw[12])
}

// SetNLB sets the zero-based number of logical blocks of a read or write.
func (c *Command) SetNLB(nlb uint16) {
	c.dw[12] = c.dw[12]&^0xFFFF | uint32(nlb)
}

// BlockCount returns NLB converted to a one-based count.
func (c *Command) BlockCount() uint64 {
	return uint64(c.NLB()) + 1
}

func (c *Command) qword(i int) uint64 {
	return uint64(c.dw[i]) | uint64(c.dw[i+1])<<32
}

func (c *Command) setQword(i int, v uint64) {
	c.dw[i] = uint32(v)
	c.dw[i+1] = uint32(v >> 32)
}

// MarshalTo writes the command to buf in little-endian order.
// Returns the number of bytes written, or 0 if buf is too small.
func (c *Command) MarshalTo(buf []byte) int {
	if len(buf) < CommandSize {
		return 0
	}
	for i, v := range c.dw {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return CommandSize
}

// ParseCommand parses a submission queue entry from raw bytes.
// Returns false if data is too short.
func ParseCommand(data []byte, out *Command) bool {
	if len(data) < CommandSize {
		return false
	}
	for i := range out.dw {
		out.dw[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return true
}

// String returns a short description of the command.
func (c *Command) String() string {
	return fmt.Sprintf("%s cid=%d nsid=%d slba=%d nlb=%d prp1=%#x prp2=%#x mptr=%#x",
		OpcodeName(c.Opcode()), c.CID(), c.NSID(), c.SLBA(), c.NLB(),
		c.PRP1(), c.PRP2(), c.MPTR())
}

// OpcodeName returns the name of an NVM command set opcode.
func OpcodeName(op uint8) string {
	switch op {
	case OpFlush:
		return "flush"
	case OpWrite:
		return "write"
	case OpRead:
		return "read"
	default:
		return fmt.Sprintf("opcode(%#02x)", op)
	}
}

// NewCreateIOCQ returns an admin command creating completion queue qid of
// depth entries at addr, with interrupts on vector.
func NewCreateIOCQ(qid, depth uint16, addr uint64, vector uint16) *Command {
	c := NewCommand(AdminCreateIOCQ, 0)
	c.SetPRP1(addr)
	c.dw[10] = uint32(depth-1)<<16 | uint32(qid)
	c.dw[11] = uint32(vector)<<16 | 0x3 // IEN | PC
	return c
}

// NewCreateIOSQ returns an admin command creating submission queue qid of
// depth entries at addr, bound to completion queue cqid.
func NewCreateIOSQ(qid, depth uint16, addr uint64, cqid uint16) *Command {
	c := NewCommand(AdminCreateIOSQ, 0)
	c.SetPRP1(addr)
	c.dw[10] = uint32(depth-1)<<16 | uint32(qid)
	c.dw[11] = uint32(cqid)<<16 | 0x1 // PC
	return c
}

// NewDeleteIOSQ returns an admin command deleting submission queue qid.
func NewDeleteIOSQ(qid uint16) *Command {
	c := NewCommand(AdminDeleteIOSQ, 0)
	c.dw[10] = uint32(qid)
	return c
}

// NewDeleteIOCQ returns an admin command deleting completion queue qid.
func NewDeleteIOCQ(qid uint16) *Command {
	c := NewCommand(AdminDeleteIOCQ, 0)
	c.dw[10] = uint32(qid)
	return c
}

// NewIdentify returns an Identify admin command for the given CNS.
func NewIdentify(cns uint8, nsid uint32, addr uint64) *Command {
	c := NewCommand(AdminIdentify, nsid)
	c.SetPRP1(addr)
	c.dw[10] = uint32(cns)
	return c
}

// QueueID returns the QID field of a create queue command.
func (c *Command) QueueID() uint16 {
	return uint16(c.dw[10])
}

// QueueDepth returns the one-based queue size of a create queue command.
func (c *Command) QueueDepth() uint32 {
	return c.dw[10]>>16 + 1
}

// CNS returns the controller or namespace structure of an Identify command.
func (c *Command) CNS() uint8 {
	return uint8(c.dw[10])
}
