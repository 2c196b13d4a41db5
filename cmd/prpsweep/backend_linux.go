//go:build linux

package main

import (
	"context"

	"github.com/ardnew/prpsweep/config"
	"github.com/ardnew/prpsweep/hal/linux"
	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/pkg"
)

// openLinux opens a kernel-managed namespace. Geometry comes from the
// admin Identify ioctl, or from sysfs when that is refused.
func openLinux(ctx context.Context, cfg config.Config) (*backend, error) {
	dev, err := linux.Open(cfg.Device)
	if err != nil {
		return nil, err
	}
	b := &backend{
		transport: dev,
		nsid:      dev.NSID(),
		closers:   []func() error{dev.Close},
	}

	allocator, err := mem.NewMmapAllocator(4096)
	if err != nil {
		b.close()
		return nil, err
	}
	b.allocator = allocator

	id, err := dev.Identify(ctx)
	if err != nil {
		pkg.LogWarn(pkg.ComponentTransport, "identify refused, reading sysfs", "error", err)
		b.source = linux.NewSysfsGeometry("", cfg.Device)
		return b, nil
	}
	b.source = id
	b.describe = describe(id.Controller())
	return b, nil
}
