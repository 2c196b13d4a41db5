// Package artifact persists diagnostic buffers of a failed sweep step.
//
// [Dir] implements the sweep diagnostic sink. Each run gets its own
// directory named by an xid, and each dumped buffer becomes a hex dump
// file named by group, test and label, optionally zstd compressed.
package artifact
