package device_test

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ardnew/prpsweep/device"
	"github.com/ardnew/prpsweep/host"
	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
	"github.com/ardnew/prpsweep/sweep"
)

const page = 4096

// bench is a controller driven by the host queue driver over one address
// space.
type bench struct {
	ctrl      *device.Controller
	allocator *mem.HeapAllocator
	driver    *host.Driver
}

func newBench(cfg device.Config, ns device.Namespace) *bench {
	space := mem.NewSpace(page)
	b := &bench{
		ctrl:      device.New(space, ns, cfg),
		allocator: mem.NewHeapAllocator(space),
	}
	b.driver = host.New(b.ctrl, b.allocator)
	Expect(b.driver.Start(context.Background())).To(Succeed())
	DeferCleanup(func() {
		Expect(b.driver.Stop(context.Background())).To(Succeed())
		Expect(b.ctrl.Close()).To(Succeed())
	})
	return b
}

func (b *bench) alloc(length uint64) *mem.Buffer {
	buf, err := b.allocator.Allocate(length, true)
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(buf.Release)
	return buf
}

func (b *bench) submit(cmd *nvme.Command) nvme.Status {
	cpl, err := b.driver.Submit(context.Background(), cmd)
	Expect(err).NotTo(HaveOccurred())
	return cpl.Status
}

func (b *bench) write(lba uint64, blocks uint16, data *mem.Buffer, meta *mem.Buffer) nvme.Status {
	cmd := nvme.NewWrite(device.NSID, lba, blocks-1)
	cmd.SetPRP1(data.Addr())
	if meta != nil {
		cmd.SetMPTR(meta.Addr())
	}
	return b.submit(cmd)
}

func (b *bench) read(lba uint64, blocks uint16, data *mem.Buffer, meta *mem.Buffer) nvme.Status {
	cmd := nvme.NewRead(device.NSID, lba, blocks-1)
	cmd.SetPRP1(data.Addr())
	if meta != nil {
		cmd.SetMPTR(meta.Addr())
	}
	return b.submit(cmd)
}

func fill(buf *mem.Buffer, seed byte) {
	p := buf.Bytes()
	for i := range p {
		p[i] = seed + byte(i)
	}
}

var _ = Describe("Controller", func() {
	Describe("bring-up", func() {
		It("rejects admin commands before it is enabled", func() {
			ctrl := device.New(mem.NewSpace(page), device.NewMemoryNamespace(8, 512, 0), device.DefaultConfig())
			_, err := ctrl.AdminCommand(context.Background(), nvme.NewIdentify(nvme.CNSController, 0, 0))
			Expect(err).To(MatchError(pkg.ErrNotReady))
		})

		It("reports fatal status for an unsupported page size", func() {
			ctrl := device.New(mem.NewSpace(page), device.NewMemoryNamespace(8, 512, 0), device.DefaultConfig())
			cc := nvme.Config{Enable: true, CSS: nvme.CCCSSNVM, MPS: 8}
			Expect(ctrl.WriteRegister32(nvme.RegCC, cc.Value())).To(Succeed())

			csts, err := ctrl.ReadRegister32(nvme.RegCSTS)
			Expect(err).NotTo(HaveOccurred())
			Expect(csts & nvme.CSTSFatal).NotTo(BeZero())
			Expect(csts & nvme.CSTSReady).To(BeZero())
		})

		It("refuses to initialize once closed", func() {
			ctrl := device.New(mem.NewSpace(page), device.NewMemoryNamespace(8, 512, 0), device.DefaultConfig())
			Expect(ctrl.Close()).To(Succeed())
			Expect(ctrl.Init(context.Background())).To(MatchError(pkg.ErrNotRunning))
		})
	})

	Describe("identify", func() {
		It("describes a metadata namespace", func() {
			ctrl := device.New(mem.NewSpace(page), device.NewMemoryNamespace(32, 512, 8), device.DefaultConfig())

			id := ctrl.IdentifyController()
			Expect(id.MDTS).To(Equal(uint8(5)))
			Expect(id.MaxTransferSize(page)).To(Equal(uint64(128 << 10)))
			Expect(id.SQES & 0xF).To(Equal(uint8(nvme.CommandSizeShift)))
			Expect(id.Serial()).To(HaveLen(20))

			ns := ctrl.IdentifyNamespace()
			Expect(ns.NSZE).To(Equal(uint64(32)))
			Expect(ns.ActiveFormat().DataSize()).To(Equal(uint64(512)))
			Expect(ns.ActiveFormat().MS).To(Equal(uint16(8)))
			Expect(ns.ExtendedLBA()).To(BeFalse())
			Expect(ns.Kind()).To(Equal(nvme.NamespaceMeta))
		})

		It("reports the configured protection type", func() {
			cfg := device.DefaultConfig()
			cfg.ProtectionType = 1
			ctrl := device.New(mem.NewSpace(page), device.NewMemoryNamespace(32, 512, 8), cfg)

			ns := ctrl.IdentifyNamespace()
			Expect(ns.ProtectionType()).To(Equal(uint8(1)))
			Expect(ns.Kind()).To(Equal(nvme.NamespaceE2E))
		})
	})

	Describe("I/O", func() {
		var b *bench

		BeforeEach(func() {
			b = newBench(device.DefaultConfig(), device.NewMemoryNamespace(1024, 512, 0))
		})

		It("round-trips a block at a page offset", func() {
			wr, err := b.allocator.AllocateAt(512, 0x604)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(wr.Release)
			fill(wr, 7)

			rd := b.alloc(512)
			Expect(b.write(0, 1, wr, nil).Success()).To(BeTrue())
			Expect(b.read(0, 1, rd, nil).Success()).To(BeTrue())
			Expect(rd.Bytes()).To(Equal(wr.Bytes()))
		})

		It("rejects a PRP1 that is not dword aligned", func() {
			buf := b.alloc(2 * 512)
			cmd := nvme.NewRead(device.NSID, 0, 0)
			cmd.SetPRP1(buf.Addr() + 2)
			Expect(b.submit(cmd).SC()).To(Equal(uint8(nvme.SCPRPOffsetInvalid)))
		})

		It("enforces the transfer ceiling", func() {
			buf := b.alloc(512)
			cmd := nvme.NewRead(device.NSID, 0, 256)
			cmd.SetPRP1(buf.Addr())
			Expect(b.submit(cmd).SC()).To(Equal(uint8(nvme.SCInvalidField)))
		})

		It("rejects an unknown namespace", func() {
			buf := b.alloc(512)
			cmd := nvme.NewRead(device.NSID+1, 0, 0)
			cmd.SetPRP1(buf.Addr())
			Expect(b.submit(cmd).SC()).To(Equal(uint8(nvme.SCInvalidNamespace)))
		})

		It("ignores a reserved PRP2 unless strict checking is armed", func() {
			buf := b.alloc(512)
			cmd := nvme.NewRead(device.NSID, 0, 0)
			cmd.SetPRP1(buf.Addr())
			cmd.SetDword(0xA5A5A5A5, 8)
			cmd.SetDword(0x5A5A5A5A, 9)
			Expect(b.submit(cmd).Success()).To(BeTrue())

			b.ctrl.SetFaults(device.Faults{StrictPRP2: true})
			Expect(b.submit(cmd).SC()).To(Equal(uint8(nvme.SCInvalidField)))
		})

		It("moves data through a PRP list", func() {
			const blocks = 3 * page / 512

			wr := b.alloc(3 * page)
			rd := b.alloc(3 * page)
			fill(wr, 0x40)

			list := func(data *mem.Buffer) *mem.Buffer {
				l := b.alloc(page)
				binary.LittleEndian.PutUint64(l.Bytes()[0:8], data.Addr()+page)
				binary.LittleEndian.PutUint64(l.Bytes()[8:16], data.Addr()+2*page)
				return l
			}

			w := nvme.NewWrite(device.NSID, 16, blocks-1)
			w.SetPRP1(wr.Addr())
			w.SetPRP2(list(wr).Addr())
			Expect(b.submit(w).Success()).To(BeTrue())

			r := nvme.NewRead(device.NSID, 16, blocks-1)
			r.SetPRP1(rd.Addr())
			r.SetPRP2(list(rd).Addr())
			Expect(b.submit(r).Success()).To(BeTrue())

			Expect(rd.Bytes()).To(Equal(wr.Bytes()))
		})

		It("corrupts read data once armed", func() {
			wr := b.alloc(512)
			rd := b.alloc(512)
			fill(wr, 1)
			Expect(b.write(0, 1, wr, nil).Success()).To(BeTrue())

			b.ctrl.SetFaults(device.Faults{CorruptRead: true, CorruptReadAt: 513, AfterCommands: 1})
			Expect(b.read(0, 1, rd, nil).Success()).To(BeTrue())
			Expect(rd.Bytes()).To(Equal(wr.Bytes()))

			Expect(b.read(0, 1, rd, nil).Success()).To(BeTrue())
			Expect(rd.Bytes()[1]).To(Equal(wr.Bytes()[1] ^ 0xFF))
			Expect(rd.Bytes()[2:]).To(Equal(wr.Bytes()[2:]))
		})

		It("counts commands", func() {
			buf := b.alloc(512)
			Expect(b.write(0, 1, buf, nil).Success()).To(BeTrue())
			Expect(b.read(0, 1, buf, nil).Success()).To(BeTrue())
			Expect(b.submit(nvme.NewCommand(nvme.OpFlush, device.NSID)).Success()).To(BeTrue())
			Expect(b.submit(nvme.NewCommand(0x7F, device.NSID)).SC()).To(Equal(uint8(nvme.SCInvalidOpcode)))

			stats := b.ctrl.Stats()
			Expect(stats.Writes).To(Equal(uint64(1)))
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Flushes).To(Equal(uint64(1)))
			Expect(stats.Errors).To(Equal(uint64(1)))
		})
	})

	Describe("separate metadata", func() {
		var b *bench

		BeforeEach(func() {
			b = newBench(device.DefaultConfig(), device.NewMemoryNamespace(64, 512, 8))
		})

		It("round-trips metadata through MPTR", func() {
			wr, wm := b.alloc(2*512), b.alloc(2*8)
			rd, rm := b.alloc(2*512), b.alloc(2*8)
			fill(wr, 3)
			fill(wm, 0x80)

			Expect(b.write(4, 2, wr, wm).Success()).To(BeTrue())
			Expect(b.read(4, 2, rd, rm).Success()).To(BeTrue())
			Expect(rd.Bytes()).To(Equal(wr.Bytes()))
			Expect(rm.Bytes()).To(Equal(wm.Bytes()))
		})

		It("corrupts read metadata once armed", func() {
			wr, wm := b.alloc(512), b.alloc(8)
			rd, rm := b.alloc(512), b.alloc(8)
			fill(wm, 0x10)
			Expect(b.write(0, 1, wr, wm).Success()).To(BeTrue())

			b.ctrl.SetFaults(device.Faults{CorruptMetadata: true, CorruptMetadataAt: 5})
			Expect(b.read(0, 1, rd, rm).Success()).To(BeTrue())
			Expect(rm.Bytes()[5]).To(Equal(wm.Bytes()[5] ^ 0xFF))
			Expect(rd.Bytes()).To(Equal(wr.Bytes()))
		})
	})

	Describe("file namespace", func() {
		It("persists blocks and metadata across controllers", func() {
			path := filepath.Join(GinkgoT().TempDir(), "ns.img")

			open := func() *bench {
				ns, err := device.NewFileNamespace(path, 16, 512, 8)
				Expect(err).NotTo(HaveOccurred())
				DeferCleanup(ns.Close)
				return newBench(device.DefaultConfig(), ns)
			}

			first := open()
			wr, wm := first.alloc(512), first.alloc(8)
			fill(wr, 9)
			fill(wm, 0xC0)
			Expect(first.write(3, 1, wr, wm).Success()).To(BeTrue())
			Expect(first.driver.Stop(context.Background())).To(Succeed())
			Expect(first.ctrl.Close()).To(Succeed())

			second := open()
			rd, rm := second.alloc(512), second.alloc(8)
			Expect(second.read(3, 1, rd, rm).Success()).To(BeTrue())
			Expect(rd.Bytes()).To(Equal(wr.Bytes()))
			Expect(rm.Bytes()).To(Equal(wm.Bytes()))
		})
	})
})

var _ = Describe("Sweep against the controller", func() {
	run := func(cfg device.Config, ns device.Namespace) (sweep.Report, error) {
		b := newBench(cfg, ns)
		id, err := b.driver.Identifier()
		Expect(err).NotTo(HaveOccurred())
		return sweep.NewEngine(id, b.driver, sweep.WithAllocator(b.allocator)).Run(context.Background())
	}

	It("passes with separate metadata and no transfer ceiling", func() {
		cfg := device.DefaultConfig()
		cfg.MDTS = 0
		report, err := run(cfg, device.NewMemoryNamespace(16, 512, 16))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Offsets).To(Equal(uint64(897)))
		Expect(report.Geometry.MetadataUnitSize).To(Equal(uint64(16)))
		Expect(report.Truncated).To(BeZero())
	})

	It("fails the first fuzzed step when PRP2 is treated as significant", func() {
		cfg := device.DefaultConfig()
		cfg.Faults.StrictPRP2 = true
		report, err := run(cfg, device.NewMemoryNamespace(16, 512, 0))
		Expect(err).To(MatchError(pkg.ErrTransportFailure))
		Expect(err).To(MatchError(pkg.ErrInvalidField))
		Expect(report.Failed).NotTo(BeNil())
		Expect(report.Failed.Index).To(BeZero())
		Expect(report.Steps).To(BeZero())
	})

	It("reports a miscompare for corrupted reads", func() {
		cfg := device.DefaultConfig()
		cfg.Faults = device.Faults{CorruptRead: true, AfterCommands: 10}
		report, err := run(cfg, device.NewMemoryNamespace(16, 512, 0))
		Expect(err).To(MatchError(pkg.ErrDataMiscompare))

		var mis *sweep.MiscompareError
		Expect(errors.As(err, &mis)).To(BeTrue())
		Expect(mis.Region).To(Equal(sweep.RegionData))
		Expect(mis.Offset).To(BeZero())
		Expect(report.Steps).To(Equal(uint64(5)))
	})

	It("fails fast on a protected namespace", func() {
		cfg := device.DefaultConfig()
		cfg.ProtectionType = 2
		report, err := run(cfg, device.NewMemoryNamespace(16, 512, 8))
		Expect(err).To(MatchError(pkg.ErrUnsupportedNamespaceFeature))
		Expect(report.Steps).To(BeZero())
	})
})
