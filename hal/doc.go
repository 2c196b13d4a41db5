// Package hal defines the hardware abstraction between the queue-pair
// driver in package host and an NVMe controller.
//
// Implementations include the simulated controller in package device. A
// HAL exposes the register file, a synchronous admin command path, and
// interrupt delivery. Payload and queue memory stay on the host side and
// are referenced by bus address.
//
// # Register Access
//
// The driver brings a controller up as follows:
//
//  1. Clear CC.EN and wait for CSTS.RDY to clear
//  2. Read CAP to learn MPSMIN, MPSMAX, MQES, DSTRD and TO
//  3. Program CC with the memory page size, command set, and queue entry sizes
//  4. Set CC.EN and wait for CSTS.RDY
//
// I/O queues are then created with admin commands and driven by writing
// the doorbell registers.
package hal
