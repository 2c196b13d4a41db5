//go:build linux

package linux

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/ardnew/prpsweep/host"
	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
)

// Device submits commands to a kernel-managed namespace through the NVMe
// passthrough ioctls. Data and metadata buffers must come from a
// mem.MmapAllocator so that their bus addresses are user virtual
// addresses.
type Device struct {
	path string
	file *os.File
	nsid uint32

	unitSize uint64 // LBA data size, known after Identify
	metaSize uint64

	prp2Once sync.Once
	mutex    sync.Mutex
}

// Open opens the namespace block device at path (e.g. /dev/nvme0n1).
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	nsid, err := ioctl(file.Fd(), ioctlID, nil)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: namespace ID: %w", path, err)
	}

	pkg.LogInfo(pkg.ComponentTransport, "opened namespace", "path", path, "nsid", nsid)
	return &Device{path: path, file: file, nsid: uint32(nsid)}, nil
}

// NSID returns the namespace identifier of the device.
func (d *Device) NSID() uint32 {
	return d.nsid
}

// Close closes the device.
func (d *Device) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// Identify reads the Identify Controller and Namespace pages. The kernel
// driver always programs a 4 KiB memory page size, which is also taken as
// the MDTS unit.
func (d *Device) Identify(ctx context.Context) (*host.Identifier, error) {
	page := make([]byte, nvme.IdentifySize)

	var ctrl nvme.IdentifyController
	if err := d.admin(ctx, nvme.NewIdentify(nvme.CNSController, 0, 0), page); err != nil {
		return nil, fmt.Errorf("identify controller: %w", err)
	}
	nvme.ParseIdentifyController(page, &ctrl)

	var ns nvme.IdentifyNamespace
	if err := d.admin(ctx, nvme.NewIdentify(nvme.CNSNamespace, d.nsid, 0), page); err != nil {
		return nil, fmt.Errorf("identify namespace %d: %w", d.nsid, err)
	}
	nvme.ParseIdentifyNamespace(page, &ns)

	d.mutex.Lock()
	d.unitSize = ns.ActiveFormat().DataSize()
	d.metaSize = uint64(ns.ActiveFormat().MS)
	d.mutex.Unlock()

	return host.NewIdentifier(nvme.Capabilities{}, nvme.Config{}, ctrl, ns), nil
}

func (d *Device) admin(ctx context.Context, cmd *nvme.Command, page []byte) error {
	pt := newPassthru(cmd, uint32(len(page)), 0)
	pt.addr = uint64(uintptr(unsafe.Pointer(&page[0])))
	pt.timeoutMs = timeoutMs(ctx)

	status, err := d.issue(ioctlAdminCmd, &pt)
	runtime.KeepAlive(page)
	if err != nil {
		return err
	}
	return nvme.Status(status).Err()
}

// Submit implements sweep.Transport for reads, writes, and flushes.
func (d *Device) Submit(ctx context.Context, cmd *nvme.Command) (nvme.Completion, error) {
	d.mutex.Lock()
	unit, meta := d.unitSize, d.metaSize
	d.mutex.Unlock()

	if unit == 0 {
		return nvme.Completion{}, fmt.Errorf("%w: namespace not identified", pkg.ErrNotReady)
	}
	if err := ctx.Err(); err != nil {
		return nvme.Completion{}, err
	}

	var dataLen, metaLen uint64
	switch cmd.Opcode() {
	case nvme.OpRead, nvme.OpWrite:
		dataLen = cmd.BlockCount() * unit
		metaLen = cmd.BlockCount() * meta
	case nvme.OpFlush:
	default:
		return nvme.Completion{}, fmt.Errorf("%w: opcode %#x", pkg.ErrNotSupported, cmd.Opcode())
	}

	if cmd.PRP2() != 0 {
		d.prp2Once.Do(func() {
			pkg.LogWarn(pkg.ComponentTransport,
				"passthrough cannot carry PRP2; reserved-field fuzz is not delivered",
				"path", d.path)
		})
	}

	pt := newPassthru(cmd, uint32(dataLen), uint32(metaLen))
	pt.timeoutMs = timeoutMs(ctx)

	status, err := d.issue(ioctlIOCmd, &pt)
	if err != nil {
		return nvme.Completion{}, err
	}
	return nvme.Completion{
		DW0:    pt.result,
		CID:    cmd.CID(),
		Status: nvme.Status(status),
	}, nil
}

func (d *Device) issue(req uintptr, pt *passthruCmd) (int, error) {
	d.mutex.Lock()
	file := d.file
	d.mutex.Unlock()
	if file == nil {
		return 0, pkg.ErrNotRunning
	}

	status, err := ioctl(file.Fd(), req, unsafe.Pointer(pt))
	if err != nil {
		return 0, fmt.Errorf("%s: passthrough %s: %w", d.path, nvme.OpcodeName(pt.opcode), err)
	}
	return status, nil
}

// timeoutMs converts the ctx deadline to a passthrough timeout; 0 selects
// the kernel default.
func timeoutMs(ctx context.Context) uint32 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return uint32(max(time.Until(deadline).Milliseconds(), 1))
}
