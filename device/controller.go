package device

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
)

// NSID is the identifier of the single namespace a Controller exposes.
const NSID = 1

// IOQueueID is the identifier of the single I/O queue pair a Controller
// supports.
const IOQueueID = 1

// Faults injects controller misbehavior. The zero value injects nothing.
type Faults struct {
	CorruptRead       bool   // Flip one data byte of every read
	CorruptReadAt     uint64 // Data offset flipped, modulo the transfer length
	CorruptMetadata   bool   // Flip one metadata byte of every read
	CorruptMetadataAt uint64 // Metadata offset flipped, modulo the metadata length
	StrictPRP2        bool   // Reject a non-zero reserved PRP2 with Invalid Field
	DropCompletions   bool   // Execute I/O commands but never post their completions
	AfterCommands     uint64 // I/O commands executed before any fault applies
}

// Config describes a simulated controller.
type Config struct {
	Serial          string // Serial number; derived from the NGUID when empty
	Model           string // Model number
	Firmware        string // Firmware revision
	Version         uint32 // VS register
	MDTS            uint8  // Max data transfer size, 2^n minimum pages; 0 = unlimited
	MPSMIN          uint8  // Minimum memory page size, 2^(12+n)
	MPSMAX          uint8  // Maximum memory page size, 2^(12+n)
	MaxQueueEntries uint16 // CAP.MQES, zero based
	ProtectionType  uint8  // Reported end-to-end protection type
	Faults          Faults
}

// DefaultConfig returns a 1.0 controller with a 128 KiB MDTS at 4 KiB pages.
func DefaultConfig() Config {
	return Config{
		Model:           "prpsweep simulated controller",
		Firmware:        "1.0",
		Version:         nvme.Version10,
		MDTS:            5,
		MPSMIN:          0,
		MPSMAX:          4,
		MaxQueueEntries: 63,
	}
}

// Stats counts executed commands.
type Stats struct {
	Admin   uint64
	Reads   uint64
	Writes  uint64
	Flushes uint64
	Errors  uint64 // Commands completed with a non-success status
	Dropped uint64 // Completions withheld by fault injection
}

// queue is one submission or completion ring in host memory.
type queue struct {
	id     uint16
	depth  uint32
	ring   []byte
	head   uint32
	tail   uint32
	phase  bool   // Completion queues: phase tag of the next posted entry
	vector uint16 // Completion queues: interrupt vector
	cqid   uint16 // Submission queues: bound completion queue
}

// Controller is a simulated NVMe controller implementing hal.HAL. It
// exposes one namespace and one I/O queue pair and reaches host memory
// through a mem.Space.
type Controller struct {
	space *mem.Space
	ns    Namespace
	cfg   Config
	nguid uuid.UUID

	cc     nvme.Config
	csts   uint32
	aqa    uint32
	asq    uint64
	acq    uint64
	intm   uint32
	ready  bool
	closed bool

	sq      *queue
	cq      *queue
	pending []nvme.Completion
	irq     chan struct{}

	executed uint64
	stats    Stats

	mutex sync.Mutex
}

// New creates a controller exposing ns and performing DMA through space.
func New(space *mem.Space, ns Namespace, cfg Config) *Controller {
	c := &Controller{
		space: space,
		ns:    ns,
		cfg:   cfg,
		nguid: uuid.New(),
		irq:   make(chan struct{}, 1),
	}
	if c.cfg.Serial == "" {
		c.cfg.Serial = strings.ToUpper(strings.ReplaceAll(c.nguid.String(), "-", ""))[:20]
	}
	return c
}

// Init implements hal.HAL.
func (c *Controller) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return pkg.ErrNotRunning
	}
	pkg.LogInfo(pkg.ComponentDevice, "controller initialized",
		"serial", c.cfg.Serial,
		"nguid", c.nguid.String(),
		"mdts", c.cfg.MDTS)
	return nil
}

// Close implements hal.HAL.
func (c *Controller) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.reset()
	return c.ns.Sync()
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cfg
}

// SetFaults replaces the injected faults and restarts the command count
// they are armed against.
func (c *Controller) SetFaults(f Faults) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cfg.Faults = f
	c.executed = 0
}

// Stats returns the command counters.
func (c *Controller) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.stats
}

// NGUID returns the namespace globally unique identifier.
func (c *Controller) NGUID() uuid.UUID {
	return c.nguid
}

func (c *Controller) capabilities() nvme.Capabilities {
	return nvme.Capabilities{
		MQES:   c.cfg.MaxQueueEntries,
		CQR:    true,
		TO:     1,
		CSS:    1,
		MPSMIN: c.cfg.MPSMIN,
		MPSMAX: c.cfg.MPSMAX,
	}
}

// pageSize returns the memory page size selected by CC.MPS.
func (c *Controller) pageSize() uint64 {
	return c.cc.PageSize()
}

// ReadRegister32 implements hal.HAL.
func (c *Controller) ReadRegister32(offset uint32) (uint32, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch offset {
	case nvme.RegCAP:
		return uint32(c.capabilities().Value()), nil
	case nvme.RegCAP + 4:
		return uint32(c.capabilities().Value() >> 32), nil
	case nvme.RegVS:
		return c.cfg.Version, nil
	case nvme.RegINTMS, nvme.RegINTMC:
		return c.intm, nil
	case nvme.RegCC:
		return c.cc.Value(), nil
	case nvme.RegCSTS:
		return c.csts, nil
	case nvme.RegAQA:
		return c.aqa, nil
	default:
		return 0, pkg.ErrInvalidParameter
	}
}

// ReadRegister64 implements hal.HAL.
func (c *Controller) ReadRegister64(offset uint32) (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch offset {
	case nvme.RegCAP:
		return c.capabilities().Value(), nil
	case nvme.RegASQ:
		return c.asq, nil
	case nvme.RegACQ:
		return c.acq, nil
	default:
		return 0, pkg.ErrInvalidParameter
	}
}

// WriteRegister64 implements hal.HAL.
func (c *Controller) WriteRegister64(offset uint32, value uint64) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch offset {
	case nvme.RegASQ:
		c.asq = value
	case nvme.RegACQ:
		c.acq = value
	default:
		return pkg.ErrInvalidParameter
	}
	return nil
}

// WriteRegister32 implements hal.HAL.
func (c *Controller) WriteRegister32(offset uint32, value uint32) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	switch offset {
	case nvme.RegINTMS:
		c.intm |= value
	case nvme.RegINTMC:
		c.intm &^= value
	case nvme.RegCC:
		c.writeCC(nvme.ParseConfig(value))
	case nvme.RegAQA:
		c.aqa = value
	case nvme.SubmissionDoorbell(0, 0), nvme.CompletionDoorbell(0, 0):
		// The admin queue is serviced synchronously by AdminCommand.
	case nvme.SubmissionDoorbell(IOQueueID, 0):
		return c.ringSubmission(value)
	case nvme.CompletionDoorbell(IOQueueID, 0):
		return c.ringCompletion(value)
	default:
		return pkg.ErrInvalidParameter
	}
	return nil
}

// writeCC applies a controller configuration write. The caller must hold
// the mutex.
func (c *Controller) writeCC(cc nvme.Config) {
	wasEnabled := c.cc.Enable
	c.cc = cc

	switch {
	case cc.Enable && !wasEnabled:
		if cc.MPS < c.cfg.MPSMIN || cc.MPS > c.cfg.MPSMAX || cc.CSS != nvme.CCCSSNVM {
			pkg.LogWarn(pkg.ComponentDevice, "invalid controller configuration",
				"mps", cc.MPS,
				"css", cc.CSS)
			c.csts |= nvme.CSTSFatal
			return
		}
		c.csts = nvme.CSTSReady
		c.ready = true
		pkg.LogInfo(pkg.ComponentDevice, "controller enabled", "page", c.pageSize())
	case !cc.Enable && wasEnabled:
		c.reset()
		pkg.LogInfo(pkg.ComponentDevice, "controller disabled")
	}
}

// reset drops all queue state. The caller must hold the mutex.
func (c *Controller) reset() {
	c.csts = 0
	c.ready = false
	c.sq = nil
	c.cq = nil
	c.pending = nil
}

// WaitInterrupt implements hal.HAL.
func (c *Controller) WaitInterrupt(ctx context.Context, vector uint16) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.irq:
		return nil
	}
}

// raise signals the completion interrupt unless it is masked or already
// pending. The caller must hold the mutex.
func (c *Controller) raise(vector uint16) {
	if c.intm&(1<<vector) != 0 {
		return
	}
	select {
	case c.irq <- struct{}{}:
	default:
	}
}
