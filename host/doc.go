// Package host drives an NVMe controller through a [hal.HAL]: controller
// bring-up, one I/O submission and completion queue pair, and synchronous
// command submission.
//
// # Bring-up
//
// [Driver.Start] follows the controller initialization sequence:
//
//  1. Read CAP and disable the controller, waiting for CSTS.RDY to clear
//  2. Allocate the admin queues and program AQA, ASQ and ACQ
//  3. Write CC with the NVM command set, page size and entry sizes, then
//     wait for CSTS.RDY
//  4. Identify the controller and namespace
//  5. Create the I/O completion queue followed by the submission queue
//
// # Submission
//
// [Driver.Submit] writes one entry at the submission queue tail, rings the
// tail doorbell, and consumes completion entries by phase tag until the
// matching command identifier arrives. The completion head doorbell is
// rung after every batch consumed.
//
// The driver satisfies the sweep Transport interface, and the [Identifier]
// returned by [Driver.Identifier] satisfies its geometry interfaces:
//
//	drv := host.New(ctrl, allocator)
//	if err := drv.Start(ctx); err != nil {
//		return err
//	}
//	defer drv.Stop(ctx)
//
//	id, _ := drv.Identifier()
//	engine := sweep.NewEngine(id, drv, sweep.WithAllocator(allocator))
package host
