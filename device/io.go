package device

import (
	"errors"
	"fmt"

	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
)

// ringSubmission consumes submission entries up to the new tail. The
// caller must hold the mutex.
func (c *Controller) ringSubmission(tail uint32) error {
	if c.sq == nil || c.cq == nil {
		return fmt.Errorf("%w: I/O queues not created", pkg.ErrNotReady)
	}
	if tail >= c.sq.depth {
		return fmt.Errorf("%w: tail %d beyond depth %d", pkg.ErrInvalidParameter, tail, c.sq.depth)
	}
	c.sq.tail = tail

	var cmd nvme.Command
	for c.sq.head != c.sq.tail {
		off := c.sq.head * nvme.CommandSize
		nvme.ParseCommand(c.sq.ring[off:off+nvme.CommandSize], &cmd)
		c.sq.head = (c.sq.head + 1) % c.sq.depth

		status := c.execute(&cmd)
		if !status.Success() {
			c.stats.Errors++
		}

		if c.faultArmed() && c.cfg.Faults.DropCompletions {
			c.stats.Dropped++
			pkg.LogDebug(pkg.ComponentDevice, "completion dropped", "cid", cmd.CID())
			continue
		}
		c.pending = append(c.pending, nvme.Completion{
			SQHead: uint16(c.sq.head),
			SQID:   c.sq.id,
			CID:    cmd.CID(),
			Status: status,
		})
	}

	c.post()
	return nil
}

// ringCompletion records the host's new completion queue head and posts any
// completions waiting for space. The caller must hold the mutex.
func (c *Controller) ringCompletion(head uint32) error {
	if c.cq == nil {
		return fmt.Errorf("%w: completion queue not created", pkg.ErrNotReady)
	}
	if head >= c.cq.depth {
		return fmt.Errorf("%w: head %d beyond depth %d", pkg.ErrInvalidParameter, head, c.cq.depth)
	}
	c.cq.head = head
	c.post()
	return nil
}

// post writes pending completions into free completion queue slots and
// raises the interrupt once. The caller must hold the mutex.
func (c *Controller) post() {
	posted := false
	for len(c.pending) > 0 {
		next := (c.cq.tail + 1) % c.cq.depth
		if next == c.cq.head {
			break // full
		}

		cpl := c.pending[0]
		cpl.Phase = c.cq.phase
		off := c.cq.tail * nvme.CompletionSize
		cpl.MarshalTo(c.cq.ring[off : off+nvme.CompletionSize])

		c.pending = c.pending[1:]
		c.cq.tail = next
		if c.cq.tail == 0 {
			c.cq.phase = !c.cq.phase
		}
		posted = true
	}
	if posted {
		c.raise(c.cq.vector)
	}
}

// faultArmed reports whether enough commands have executed for injected
// faults to apply. The caller must hold the mutex.
func (c *Controller) faultArmed() bool {
	return c.executed > c.cfg.Faults.AfterCommands
}

// execute runs one NVM command set command. The caller must hold the
// mutex.
func (c *Controller) execute(cmd *nvme.Command) nvme.Status {
	c.executed++

	pkg.LogDebug(pkg.ComponentDevice, "I/O command", "cmd", cmd.String())

	if cmd.PSDT() != 0 {
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidField)
	}

	switch cmd.Opcode() {
	case nvme.OpFlush:
		c.stats.Flushes++
		if cmd.NSID() != NSID {
			return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidNamespace)
		}
		if err := c.ns.Sync(); err != nil {
			return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInternalError)
		}
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCSuccess)
	case nvme.OpWrite:
		c.stats.Writes++
		return c.transfer(cmd, true)
	case nvme.OpRead:
		c.stats.Reads++
		return c.transfer(cmd, false)
	default:
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidOpcode)
	}
}

// maxTransferSize returns the MDTS ceiling in bytes, 0 for unlimited.
func (c *Controller) maxTransferSize() uint64 {
	if c.cfg.MDTS == 0 {
		return 0
	}
	return nvme.PageSizeFromMPS(c.cfg.MPSMIN) << c.cfg.MDTS
}

// transfer moves the blocks of a read or write between the namespace and
// host memory. The caller must hold the mutex.
func (c *Controller) transfer(cmd *nvme.Command, write bool) nvme.Status {
	if cmd.NSID() != NSID {
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidNamespace)
	}

	blocks := cmd.BlockCount()
	if cmd.SLBA()+blocks > c.ns.BlockCount() {
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCLBAOutOfRange)
	}

	length := blocks * uint64(c.ns.BlockSize())
	if mdts := c.maxTransferSize(); mdts > 0 && length > mdts {
		pkg.LogDebug(pkg.ComponentDevice, "transfer exceeds MDTS",
			"length", length,
			"mdts", mdts)
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidField)
	}

	w := prpWalker{
		space:    c.space,
		pageSize: c.pageSize(),
		strict:   c.faultArmed() && c.cfg.Faults.StrictPRP2,
	}
	segs, status := w.walk(cmd.PRP1(), cmd.PRP2(), length)
	if !status.Success() {
		return status
	}

	var meta []byte
	if ms := uint64(c.ns.MetadataSize()); ms > 0 {
		var err error
		if meta, err = c.space.Slice(cmd.MPTR(), blocks*ms); err != nil {
			return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCDataTransferError)
		}
	}

	data := make([]byte, length)
	if write {
		if err := gather(c.space, segs, data); err != nil {
			return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCDataTransferError)
		}
		return c.namespaceStatus(c.ns.Write(cmd.SLBA(), uint32(blocks), data, meta), true)
	}

	if status := c.namespaceStatus(c.ns.Read(cmd.SLBA(), uint32(blocks), data, meta), false); !status.Success() {
		return status
	}
	if c.faultArmed() {
		f := c.cfg.Faults
		if f.CorruptRead {
			data[f.CorruptReadAt%length] ^= 0xFF
		}
		if f.CorruptMetadata && len(meta) > 0 {
			meta[f.CorruptMetadataAt%uint64(len(meta))] ^= 0xFF
		}
	}
	if err := scatter(c.space, segs, data); err != nil {
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCDataTransferError)
	}
	return status
}

// namespaceStatus maps a namespace error to a completion status.
func (c *Controller) namespaceStatus(err error, write bool) nvme.Status {
	switch {
	case err == nil:
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCSuccess)
	case errors.Is(err, pkg.ErrLBAOutOfRange):
		return nvme.MakeStatus(nvme.SCTGeneric, nvme.SCLBAOutOfRange)
	default:
		pkg.LogWarn(pkg.ComponentDevice, "namespace error", "write", write, "error", err)
		if write {
			return nvme.MakeStatus(nvme.SCTMediaError, nvme.SCWriteFault).WithDNR()
		}
		return nvme.MakeStatus(nvme.SCTMediaError, nvme.SCUnrecoveredRead).WithDNR()
	}
}
