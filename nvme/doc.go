// Package nvme models the parts of the NVM Express 1.0b protocol exercised
// by the PRP boundary sweep.
//
// The package contains no I/O. It defines:
//
//   - [Command], the 64-byte submission queue entry, with accessors for the
//     fields the sweep sets (NSID, SLBA, NLB, PRP1, PRP2, MPTR) and raw
//     dword access for reserved-field injection
//   - [Completion] and [Status], the 16-byte completion queue entry
//   - [IdentifyController] and [IdentifyNamespace], the subset of the
//     Identify data structures needed to derive transfer geometry
//   - [Capabilities] and [Config], the CAP and CC controller registers
//
// All wire formats are little-endian. Marshalling follows the MarshalTo /
// Parse* convention: callers provide buffers and no allocation occurs.
package nvme
