package device

import (
	"context"
	"math/bits"

	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
)

// AdminCommand implements hal.HAL.
func (c *Controller) AdminCommand(ctx context.Context, cmd *nvme.Command) (nvme.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nvme.Completion{}, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.ready {
		return nvme.Completion{}, pkg.ErrNotReady
	}
	c.stats.Admin++

	pkg.LogDebug(pkg.ComponentDevice, "admin command",
		"opcode", cmd.Opcode(),
		"cid", cmd.CID())

	var status nvme.Status
	switch cmd.Opcode() {
	case nvme.AdminIdentify:
		status = c.handleIdentify(cmd)
	case nvme.AdminCreateIOCQ:
		status = c.handleCreateIOCQ(cmd)
	case nvme.AdminCreateIOSQ:
		status = c.handleCreateIOSQ(cmd)
	case nvme.AdminDeleteIOSQ:
		status = c.handleDeleteIOSQ(cmd)
	case nvme.AdminDeleteIOCQ:
		status = c.handleDeleteIOCQ(cmd)
	default:
		pkg.LogWarn(pkg.ComponentDevice, "unsupported admin command",
			"opcode", cmd.Opcode())
		status = nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidOpcode)
	}

	if !status.Success() {
		c.stats.Errors++
	}
	return nvme.Completion{CID: cmd.CID(), Status: status}, nil
}

// IdentifyController returns the Identify Controller data of c.
func (c *Controller) IdentifyController() nvme.IdentifyController {
	var id nvme.IdentifyController
	id.VendorID = 0x1B36
	id.SubVendorID = 0x1AF4
	copy(id.SerialNumber[:], nvme.PadString(c.cfg.Serial, len(id.SerialNumber)))
	copy(id.ModelNumber[:], nvme.PadString(c.cfg.Model, len(id.ModelNumber)))
	copy(id.Firmware[:], nvme.PadString(c.cfg.Firmware, len(id.Firmware)))
	id.MDTS = c.cfg.MDTS
	id.ControllerID = 1
	id.Version = c.cfg.Version
	id.SQES = nvme.CommandSizeShift<<4 | nvme.CommandSizeShift
	id.CQES = nvme.CompletionSizeShift<<4 | nvme.CompletionSizeShift
	id.NN = 1
	return id
}

// IdentifyNamespace returns the Identify Namespace data of the namespace.
func (c *Controller) IdentifyNamespace() nvme.IdentifyNamespace {
	var id nvme.IdentifyNamespace
	id.NSZE = c.ns.BlockCount()
	id.NCAP = id.NSZE
	id.NUSE = id.NSZE
	id.LBAF[0] = nvme.LBAFormat{
		MS:    c.ns.MetadataSize(),
		LBADS: uint8(bits.TrailingZeros32(c.ns.BlockSize())),
	}
	if id.LBAF[0].MS > 0 {
		id.MC = 0x2 // Separate buffer
	}
	if c.cfg.ProtectionType != 0 {
		id.DPC = 1 << (c.cfg.ProtectionType - 1)
		id.DPS = c.cfg.ProtectionType & nvme.DPSTypeMask
	}
	id.NGUID = c.nguid
	return id
}

func (c *Controller) handleIdentify(cmd *nvme.Command) nvme.Status {
	var page [nvme.IdentifySize]byte

	switch cmd.CNS() {
	case nvme.CNSController:
		id := c.IdentifyController()
		id.MarshalTo(page[:])
	case nvme.CNSNamespace:
		if cmd.NSID() != NSID {
			return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidNamespace)
		}
		id := c.IdentifyNamespace()
		id.MarshalTo(page[:])
	default:
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidField)
	}

	return c.transferOut(cmd.PRP1(), cmd.PRP2(), page[:])
}

// transferOut writes src to the host memory described by prp1 and prp2.
func (c *Controller) transferOut(prp1, prp2 uint64, src []byte) nvme.Status {
	w := prpWalker{space: c.space, pageSize: c.pageSize()}
	segs, status := w.walk(prp1, prp2, uint64(len(src)))
	if !status.Success() {
		return status
	}
	if err := scatter(c.space, segs, src); err != nil {
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCDataTransferError)
	}
	return status
}

// ring resolves a physically contiguous queue of depth entries of size
// bytes at addr.
func (c *Controller) ring(addr uint64, depth uint32, size uint64) ([]byte, nvme.Status) {
	if addr%c.pageSize() != 0 {
		return nil, nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidField)
	}
	ring, err := c.space.Slice(addr, uint64(depth)*size)
	if err != nil {
		return nil, nvme.MakeStatus(nvme.SCTGeneric, nvme.SCDataTransferError)
	}
	return ring, nvme.MakeStatus(nvme.SCTGeneric, nvme.SCSuccess)
}

// checkQueue validates the identifier and size of a queue creation.
func (c *Controller) checkQueue(cmd *nvme.Command) nvme.Status {
	if cmd.QueueID() != IOQueueID {
		return nvme.MakeStatus(nvme.SCTCommandSpecific, nvme.SCInvalidQueueID)
	}
	depth := cmd.QueueDepth()
	if depth < 2 || depth > uint32(c.cfg.MaxQueueEntries)+1 {
		return nvme.MakeStatus(nvme.SCTCommandSpecific, nvme.SCInvalidQueueSize)
	}
	// Physically contiguous queues are required.
	if cmd.Dword(11)&0x1 == 0 {
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidField)
	}
	return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCSuccess)
}

func (c *Controller) handleCreateIOCQ(cmd *nvme.Command) nvme.Status {
	if status := c.checkQueue(cmd); !status.Success() {
		return status
	}
	if c.cq != nil {
		return nvme.MakeStatus(nvme.SCTCommandSpecific, nvme.SCInvalidQueueID)
	}

	ring, status := c.ring(cmd.PRP1(), cmd.QueueDepth(), nvme.CompletionSize)
	if !status.Success() {
		return status
	}
	clear(ring)
	c.cq = &queue{
		id:     cmd.QueueID(),
		depth:  cmd.QueueDepth(),
		ring:   ring,
		phase:  true,
		vector: uint16(cmd.Dword(11) >> 16),
	}
	pkg.LogDebug(pkg.ComponentDevice, "I/O completion queue created",
		"qid", c.cq.id,
		"depth", c.cq.depth,
		"vector", c.cq.vector)
	return status
}

func (c *Controller) handleCreateIOSQ(cmd *nvme.Command) nvme.Status {
	if status := c.checkQueue(cmd); !status.Success() {
		return status
	}
	if c.sq != nil {
		return nvme.MakeStatus(nvme.SCTCommandSpecific, nvme.SCInvalidQueueID)
	}
	cqid := uint16(cmd.Dword(11) >> 16)
	if c.cq == nil || c.cq.id != cqid {
		return nvme.MakeStatus(nvme.SCTCommandSpecific, nvme.SCCompletionQueueInvalid)
	}

	ring, status := c.ring(cmd.PRP1(), cmd.QueueDepth(), nvme.CommandSize)
	if !status.Success() {
		return status
	}
	c.sq = &queue{
		id:    cmd.QueueID(),
		depth: cmd.QueueDepth(),
		ring:  ring,
		cqid:  cqid,
	}
	pkg.LogDebug(pkg.ComponentDevice, "I/O submission queue created",
		"qid", c.sq.id,
		"depth", c.sq.depth,
		"cqid", cqid)
	return status
}

func (c *Controller) handleDeleteIOSQ(cmd *nvme.Command) nvme.Status {
	if c.sq == nil || cmd.QueueID() != c.sq.id {
		return nvme.MakeStatus(nvme.SCTCommandSpecific, nvme.SCInvalidQueueID)
	}
	c.sq = nil
	return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCSuccess)
}

func (c *Controller) handleDeleteIOCQ(cmd *nvme.Command) nvme.Status {
	if c.cq == nil || cmd.QueueID() != c.cq.id {
		return nvme.MakeStatus(nvme.SCTCommandSpecific, nvme.SCInvalidQueueID)
	}
	if c.sq != nil {
		// The submission queue must be deleted first.
		return nvme.MakeStatus(nvme.SCTCommandSpecific, nvme.SCInvalidQueueDeletion)
	}
	c.cq = nil
	c.pending = nil
	return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCSuccess)
}
