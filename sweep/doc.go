// Package sweep implements the PRP offset, single-page, multi-block sweep.
//
// For every dword-aligned offset in the first memory page and every block
// count that keeps the payload within that page, the [Engine] writes a
// patterned payload to LBA 0, reads it back into fresh buffers, and
// compares the result byte for byte. PRP1 carries the payload address;
// PRP2 is reserved for such transfers and carries fuzz values a compliant
// controller must ignore.
//
// The pieces compose bottom-up:
//
//   - [Fill] and [Expected] generate the payload pattern for a seed
//   - [Plan] enumerates the steps for a [Geometry]
//   - [Builder] allocates buffers and builds the [nvme.Command] for a step
//   - [Verifier] regenerates the pattern and compares a [ReadResult]
//   - [Engine] runs the plan through a [Transport]
//
// Basic usage:
//
//	eng := sweep.NewEngine(geometrySource, transport,
//		sweep.WithAllocator(allocator),
//		sweep.WithSink(artifacts),
//	)
//	report, err := eng.Run(ctx)
//
// Every failure is fatal. A transport error or non-success completion
// wraps [pkg.ErrTransportFailure]; a mismatch is a [*MiscompareError]
// wrapping [pkg.ErrDataMiscompare] or [pkg.ErrMetadataMiscompare].
package sweep
