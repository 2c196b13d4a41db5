// Package pciid looks up PCI vendor and device names in the pci.ids
// database shipped with most Linux distributions.
//
// The NVMe Identify Controller data carries the PCI vendor and subsystem
// vendor identifiers; the sweep command uses this package to print them by
// name.
//
//	db := pciid.New()
//	db.Load()
//	name := db.Vendor(0x144D)
//
// Lookups return empty strings when no database was found. All methods
// are safe for concurrent use.
package pciid
