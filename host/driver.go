package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardnew/prpsweep/hal"
	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
)

// Queue defaults.
const (
	// DefaultQueueDepth is the smallest I/O queue every controller accepts.
	DefaultQueueDepth = 2

	// AdminQueueDepth is the depth of the admin rings programmed in AQA.
	AdminQueueDepth = 2

	// IOQueueID identifies the I/O queue pair owned by the driver.
	IOQueueID = 1

	// readyPoll is the interval between CSTS.RDY polls.
	readyPoll = time.Millisecond
)

// Option configures a Driver.
type Option func(*Driver)

// WithPageSize selects the memory page size programmed into CC.MPS. The
// default is the controller minimum.
func WithPageSize(size uint64) Option {
	return func(d *Driver) {
		d.pageSize = size
	}
}

// WithQueueDepth sets the I/O queue depth.
func WithQueueDepth(depth uint16) Option {
	return func(d *Driver) {
		if depth >= 2 {
			d.depth = depth
		}
	}
}

// WithNSID selects the namespace identified at start.
func WithNSID(nsid uint32) Option {
	return func(d *Driver) {
		d.nsid = nsid
	}
}

// Driver owns one I/O submission and completion queue pair on a controller
// and submits commands through it one at a time.
type Driver struct {
	hal       hal.HAL
	allocator mem.Allocator

	pageSize uint64
	depth    uint16
	nsid     uint32

	capabilities nvme.Capabilities
	config       nvme.Config
	controller   nvme.IdentifyController
	namespace    nvme.IdentifyNamespace

	asq, acq *mem.Buffer
	sq       *submissionQueue
	cq       *completionQueue
	nextCID  uint16

	running bool
	mutex   sync.Mutex
}

// New creates a driver for the controller behind h. Queue memory comes
// from allocator, which must be reachable by the controller.
func New(h hal.HAL, allocator mem.Allocator, opts ...Option) *Driver {
	d := &Driver{
		hal:       h,
		allocator: allocator,
		depth:     DefaultQueueDepth,
		nsid:      1,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start brings the controller up and creates the I/O queue pair:
// disable, program the admin queues, select page size and command set,
// enable, identify the controller and namespace, create the queues.
func (d *Driver) Start(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.running {
		return pkg.ErrAlreadyRunning
	}

	if err := d.hal.Init(ctx); err != nil {
		return err
	}

	capValue, err := d.hal.ReadRegister64(nvme.RegCAP)
	if err != nil {
		return fmt.Errorf("read CAP: %w", err)
	}
	d.capabilities = nvme.ParseCapabilities(capValue)

	if err := d.disable(ctx); err != nil {
		return err
	}

	if err := d.programAdminQueues(); err != nil {
		d.releaseQueues()
		return err
	}

	if err := d.enable(ctx); err != nil {
		d.releaseQueues()
		return err
	}

	if err := d.identify(ctx); err != nil {
		d.releaseQueues()
		return err
	}

	if err := d.createQueues(ctx); err != nil {
		d.releaseQueues()
		return err
	}

	d.running = true
	pkg.LogInfo(pkg.ComponentQueue, "driver started",
		"page", d.config.PageSize(),
		"depth", d.depth,
		"mdts", d.controller.MDTS,
		"serial", d.controller.Serial())
	return nil
}

// Stop deletes the I/O queues, disables the controller, and releases queue
// memory. The HAL is left open.
func (d *Driver) Stop(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.running {
		return nil
	}
	d.running = false

	var errs []error
	if _, err := d.admin(ctx, nvme.NewDeleteIOSQ(IOQueueID)); err != nil {
		errs = append(errs, err)
	}
	if _, err := d.admin(ctx, nvme.NewDeleteIOCQ(IOQueueID)); err != nil {
		errs = append(errs, err)
	}
	if err := d.disable(ctx); err != nil {
		errs = append(errs, err)
	}
	d.releaseQueues()

	pkg.LogInfo(pkg.ComponentQueue, "driver stopped")
	return errors.Join(errs...)
}

// IsRunning returns true if the queue pair is live.
func (d *Driver) IsRunning() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.running
}

// Submit writes cmd to the submission queue, rings the tail doorbell, and
// waits for the matching completion. It assigns the command identifier.
// Completions for earlier, abandoned commands are discarded.
func (d *Driver) Submit(ctx context.Context, cmd *nvme.Command) (nvme.Completion, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.running {
		return nvme.Completion{}, pkg.ErrNotRunning
	}
	if d.sq.full() {
		// Reap anything the controller already posted before giving up.
		d.reap(nil)
		if d.sq.full() {
			return nvme.Completion{}, pkg.ErrQueueFull
		}
	}

	cid := d.nextCID
	d.nextCID++
	cmd.SetCID(cid)

	tail := d.sq.push(cmd)
	if err := d.hal.WriteRegister32(nvme.SubmissionDoorbell(d.sq.id, d.capabilities.DSTRD), uint32(tail)); err != nil {
		return nvme.Completion{}, fmt.Errorf("ring SQ%d tail: %w", d.sq.id, err)
	}

	pkg.LogDebug(pkg.ComponentQueue, "command submitted",
		"cid", cid,
		"tail", tail,
		"cmd", cmd.String())

	for {
		var cpl nvme.Completion
		if d.reap(func(c nvme.Completion) bool {
			if c.CID != cid {
				pkg.LogWarn(pkg.ComponentQueue, "discarding stale completion",
					"cid", c.CID,
					"want", cid)
				return false
			}
			cpl = c
			return true
		}) {
			return cpl, nil
		}

		if err := d.hal.WaitInterrupt(ctx, d.cq.vector); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nvme.Completion{}, fmt.Errorf("%w: cid %d: %w", pkg.ErrTimeout, cid, err)
			}
			return nvme.Completion{}, err
		}
	}
}

// reap consumes every posted completion, updating the submission queue
// head and ringing the completion head doorbell. It returns true as soon
// as match accepts an entry.
func (d *Driver) reap(match func(nvme.Completion) bool) bool {
	var (
		cpl   nvme.Completion
		found bool
		moved bool
	)
	for !found && d.cq.pop(&cpl) {
		moved = true
		d.sq.head = cpl.SQHead
		if match != nil && match(cpl) {
			found = true
		}
	}
	if moved {
		db := nvme.CompletionDoorbell(d.cq.id, d.capabilities.DSTRD)
		if err := d.hal.WriteRegister32(db, uint32(d.cq.head)); err != nil {
			pkg.LogWarn(pkg.ComponentQueue, "ring CQ head failed", "error", err)
		}
	}
	return found
}

// Identifier returns the geometry reported by the controller at start.
func (d *Driver) Identifier() (*Identifier, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.running {
		return nil, pkg.ErrNotRunning
	}
	return NewIdentifier(d.capabilities, d.config, d.controller, d.namespace), nil
}

// Allocator returns the allocator queue memory comes from.
func (d *Driver) Allocator() mem.Allocator {
	return d.allocator
}

func (d *Driver) disable(ctx context.Context) error {
	cc, err := d.hal.ReadRegister32(nvme.RegCC)
	if err != nil {
		return fmt.Errorf("read CC: %w", err)
	}
	if err := d.hal.WriteRegister32(nvme.RegCC, cc&^nvme.CCEnable); err != nil {
		return fmt.Errorf("write CC: %w", err)
	}
	return d.waitReady(ctx, false)
}

func (d *Driver) programAdminQueues() error {
	var err error
	if d.asq, err = d.allocator.Allocate(AdminQueueDepth*nvme.CommandSize, true); err != nil {
		return fmt.Errorf("allocate admin SQ: %w", err)
	}
	if d.acq, err = d.allocator.Allocate(AdminQueueDepth*nvme.CompletionSize, true); err != nil {
		return fmt.Errorf("allocate admin CQ: %w", err)
	}

	aqa := uint32(AdminQueueDepth-1)<<16 | uint32(AdminQueueDepth-1)
	if err := d.hal.WriteRegister32(nvme.RegAQA, aqa); err != nil {
		return fmt.Errorf("write AQA: %w", err)
	}
	if err := d.hal.WriteRegister64(nvme.RegASQ, d.asq.Addr()); err != nil {
		return fmt.Errorf("write ASQ: %w", err)
	}
	if err := d.hal.WriteRegister64(nvme.RegACQ, d.acq.Addr()); err != nil {
		return fmt.Errorf("write ACQ: %w", err)
	}
	return nil
}

func (d *Driver) enable(ctx context.Context) error {
	pageSize := d.pageSize
	if pageSize == 0 {
		pageSize = d.capabilities.MinPageSize()
	}
	mps, ok := nvme.MPSFromPageSize(pageSize)
	if !ok || mps < d.capabilities.MPSMIN || mps > d.capabilities.MPSMAX {
		return fmt.Errorf("%w: page size %d outside controller range %d-%d",
			pkg.ErrNotSupported, pageSize,
			d.capabilities.MinPageSize(), d.capabilities.MaxPageSize())
	}

	d.config = nvme.Config{
		Enable: true,
		CSS:    nvme.CCCSSNVM,
		MPS:    mps,
		IOSQES: nvme.CommandSizeShift,
		IOCQES: nvme.CompletionSizeShift,
	}
	if err := d.hal.WriteRegister32(nvme.RegCC, d.config.Value()); err != nil {
		return fmt.Errorf("write CC: %w", err)
	}
	return d.waitReady(ctx, true)
}

// waitReady polls CSTS until RDY equals ready, the controller reports a
// fatal status, or ctx is done.
func (d *Driver) waitReady(ctx context.Context, ready bool) error {
	timeout := time.Duration(max(d.capabilities.TO, 1)) * 500 * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		csts, err := d.hal.ReadRegister32(nvme.RegCSTS)
		if err != nil {
			return fmt.Errorf("read CSTS: %w", err)
		}
		if csts&nvme.CSTSFatal != 0 {
			return fmt.Errorf("%w: controller fatal status", pkg.ErrNotReady)
		}
		if (csts&nvme.CSTSReady != 0) == ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: CSTS.RDY did not become %t", pkg.ErrNotReady, ready)
		case <-time.After(readyPoll):
		}
	}
}

func (d *Driver) identify(ctx context.Context) error {
	page, err := d.allocator.Allocate(nvme.IdentifySize, true)
	if err != nil {
		return fmt.Errorf("allocate identify page: %w", err)
	}
	defer page.Release()

	if _, err := d.admin(ctx, nvme.NewIdentify(nvme.CNSController, 0, page.Addr())); err != nil {
		return fmt.Errorf("identify controller: %w", err)
	}
	nvme.ParseIdentifyController(page.Bytes(), &d.controller)

	// Queue entry sizes are fixed by the command set; the controller must
	// accept them.
	if d.controller.SQES&0xF > nvme.CommandSizeShift || d.controller.CQES&0xF > nvme.CompletionSizeShift {
		return fmt.Errorf("%w: queue entry sizes sqes=%#x cqes=%#x",
			pkg.ErrNotSupported, d.controller.SQES, d.controller.CQES)
	}

	clear(page.Bytes())
	if _, err := d.admin(ctx, nvme.NewIdentify(nvme.CNSNamespace, d.nsid, page.Addr())); err != nil {
		return fmt.Errorf("identify namespace %d: %w", d.nsid, err)
	}
	nvme.ParseIdentifyNamespace(page.Bytes(), &d.namespace)
	if d.namespace.NSZE == 0 {
		return fmt.Errorf("%w: nsid %d", pkg.ErrNoNamespace, d.nsid)
	}

	pkg.LogInfo(pkg.ComponentQueue, "controller identified",
		"model", d.controller.Model(),
		"mdts", d.controller.MDTS,
		"nsid", d.nsid,
		"lba", d.namespace.ActiveFormat().DataSize(),
		"meta", d.namespace.ActiveFormat().MS,
		"kind", d.namespace.Kind())
	return nil
}

func (d *Driver) createQueues(ctx context.Context) error {
	bytes := func(entries uint16, size uint64) uint64 { return uint64(entries) * size }

	cqBuf, err := d.allocator.Allocate(bytes(d.depth, nvme.CompletionSize), true)
	if err != nil {
		return fmt.Errorf("allocate I/O CQ: %w", err)
	}
	d.cq = newCompletionQueue(IOQueueID, d.depth, cqBuf, 0)
	if _, err := d.admin(ctx, nvme.NewCreateIOCQ(IOQueueID, d.depth, cqBuf.Addr(), d.cq.vector)); err != nil {
		return fmt.Errorf("create I/O CQ: %w", err)
	}

	sqBuf, err := d.allocator.Allocate(bytes(d.depth, nvme.CommandSize), true)
	if err != nil {
		return fmt.Errorf("allocate I/O SQ: %w", err)
	}
	d.sq = &submissionQueue{id: IOQueueID, depth: d.depth, buf: sqBuf}
	if _, err := d.admin(ctx, nvme.NewCreateIOSQ(IOQueueID, d.depth, sqBuf.Addr(), IOQueueID)); err != nil {
		return fmt.Errorf("create I/O SQ: %w", err)
	}
	return nil
}

// admin executes an admin command and converts a failed status to an
// error.
func (d *Driver) admin(ctx context.Context, cmd *nvme.Command) (nvme.Completion, error) {
	cmd.SetCID(d.nextCID)
	d.nextCID++

	cpl, err := d.hal.AdminCommand(ctx, cmd)
	if err != nil {
		return cpl, err
	}
	return cpl, cpl.Status.Err()
}

func (d *Driver) releaseQueues() {
	for _, b := range []*mem.Buffer{d.asq, d.acq} {
		if b != nil {
			b.Release()
		}
	}
	if d.sq != nil {
		d.sq.buf.Release()
	}
	if d.cq != nil {
		d.cq.buf.Release()
	}
	d.asq, d.acq, d.sq, d.cq = nil, nil, nil, nil
}
