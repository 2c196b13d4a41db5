// Package mem provides the host memory used as DMA targets by NVMe
// commands.
//
// A [Buffer] is a run of whole pages whose payload starts at a chosen
// offset inside the first page, which is how PRP1 offsets are exercised.
// Every buffer carries a bus address: the value placed in PRP entries and
// the metadata pointer.
//
// Two allocators are provided. [HeapAllocator] backs buffers with Go heap
// memory and registers them in a [Space] so a simulated controller can
// resolve bus addresses. [MmapAllocator] (Linux) backs buffers with
// anonymous mappings whose virtual address is handed to the kernel
// passthrough interface.
package mem
