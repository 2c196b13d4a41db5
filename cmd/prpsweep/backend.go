package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ardnew/prpsweep/config"
	"github.com/ardnew/prpsweep/device"
	"github.com/ardnew/prpsweep/host"
	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg/linux/pciid"
	"github.com/ardnew/prpsweep/sweep"
)

// backend is a started controller ready for a sweep.
type backend struct {
	source    sweep.GeometrySource
	transport sweep.Transport
	allocator mem.Allocator
	nsid      uint32
	describe  string
	closers   []func() error
}

func (b *backend) close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Backend {
	case config.BackendSim:
		return openSim(ctx, cfg)
	case config.BackendLinux:
		return openLinux(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// openSim starts the host driver against a simulated controller sharing
// one bus address space with the sweep's buffers.
func openSim(ctx context.Context, cfg config.Config) (*backend, error) {
	b := &backend{nsid: cfg.NSID}

	var ns device.Namespace
	if cfg.NamespaceFile != "" {
		f, err := device.NewFileNamespace(cfg.NamespaceFile, cfg.Blocks, uint32(cfg.LBASize), uint16(cfg.MetadataSize))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, f.Close)
		ns = f
	} else {
		ns = device.NewMemoryNamespace(cfg.Blocks, uint32(cfg.LBASize), uint16(cfg.MetadataSize))
	}

	dc := device.DefaultConfig()
	dc.MDTS = cfg.MDTS
	dc.ProtectionType = cfg.Protection
	dc.Faults.StrictPRP2 = cfg.StrictPRP2
	switch cfg.Corrupt {
	case config.CorruptData:
		dc.Faults.CorruptRead = true
	case config.CorruptMetadata:
		dc.Faults.CorruptMetadata = true
	}
	if mps, ok := nvme.MPSFromPageSize(cfg.PageSize); ok && mps > dc.MPSMAX {
		dc.MPSMAX = mps
	}

	space := mem.NewSpace(cfg.PageSize)
	ctrl := device.New(space, ns, dc)
	b.closers = append(b.closers, ctrl.Close)

	allocator := mem.NewHeapAllocator(space)
	drv := host.New(ctrl, allocator,
		host.WithPageSize(cfg.PageSize),
		host.WithQueueDepth(cfg.QueueDepth),
		host.WithNSID(cfg.NSID))
	if err := drv.Start(ctx); err != nil {
		b.close()
		return nil, err
	}
	b.closers = append(b.closers, func() error { return drv.Stop(context.Background()) })

	id, err := drv.Identifier()
	if err != nil {
		b.close()
		return nil, err
	}

	b.source = id
	b.transport = drv
	b.allocator = allocator
	b.describe = describe(id.Controller())
	return b, nil
}

// describe names the controller by model, serial and PCI vendor.
func describe(c nvme.IdentifyController) string {
	db := pciid.New()
	db.Load()
	return fmt.Sprintf("%s (sn %s, fw %s, vendor %s)",
		c.Model(), c.Serial(), trim(c.Firmware[:]), db.Describe(c.VendorID, 0))
}

func trim(b []byte) string {
	end := len(b)
	for end > 0 && (b[end-1] == ' ' || b[end-1] == 0) {
		end--
	}
	return string(b[:end])
}
