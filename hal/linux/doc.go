// Package linux reaches real NVMe namespaces through the Linux kernel
// driver.
//
// [Device] issues commands with the NVME_IOCTL_IO_CMD passthrough ioctl on
// a namespace block device and reads geometry with NVME_IOCTL_ADMIN_CMD
// Identify. The kernel maps the user buffers and builds the PRP entries,
// so the page offset of each buffer reaches the controller unchanged but
// the reserved PRP2 field cannot be fuzzed.
//
// [SysfsGeometry] reads the same limits from /sys/block when the admin
// ioctl is not permitted.
package linux
