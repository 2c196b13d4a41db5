// Package device provides a simulated NVMe controller.
//
// A [Controller] implements hal.HAL over a register file, one namespace,
// and one I/O queue pair. It performs DMA through a mem.Space: PRP1 and
// PRP2 (as a page pointer or PRP list) are resolved exactly as a
// controller would, PRP2 is reserved when the transfer fits in the first
// page, MDTS is enforced, and separate metadata moves through MPTR.
//
// Namespace storage is pluggable:
//
//   - [MemoryNamespace] holds blocks and metadata in memory
//   - [FileNamespace] keeps blocks in a file and metadata in a sibling file
//
// [Faults] turns the controller into a misbehaving device under test:
// corrupting read data or metadata, treating the reserved PRP2 as
// significant, or withholding completions.
//
// Basic usage:
//
//	space := mem.NewSpace(4096)
//	ctrl := device.New(space, device.NewMemoryNamespace(1024, 512, 0), device.DefaultConfig())
//	drv := host.New(ctrl, mem.NewHeapAllocator(space))
package device
