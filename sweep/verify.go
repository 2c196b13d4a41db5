package sweep

import (
	"errors"
	"fmt"

	"github.com/ardnew/prpsweep/pkg"
)

// Artifact labels.
const (
	LabelReadPayload      = "ReadPayload"
	LabelWrittenPayload   = "WrittenPayload"
	LabelMetaReadPayload  = "MetaRdPayload"
	LabelMetaWritePayload = "MetaWrPayload"
)

// Region names the part of a transfer that failed verification.
type Region uint8

// Regions.
const (
	RegionData Region = iota
	RegionMetadata
)

// String returns the region name.
func (r Region) String() string {
	switch r {
	case RegionData:
		return "data"
	case RegionMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// ReadResult is what the read path produced.
type ReadResult struct {
	Data []byte
	Meta []byte // nil when the read carried no metadata region
}

// MiscompareError reports the first byte that differs between the expected
// and actual contents of a region.
type MiscompareError struct {
	Region    Region
	Offset    uint64   // First differing byte
	Expected  byte     // Expected value at Offset
	Actual    byte     // Actual value at Offset
	Length    uint64   // Compared length
	Artifacts []string // References to the dumped buffers
	DumpErr   error    // Failures to dump either buffer
}

func (e *MiscompareError) Error() string {
	msg := fmt.Sprintf("%s miscompare at offset %d of %d: expected %#02x, got %#02x",
		e.Region, e.Offset, e.Length, e.Expected, e.Actual)
	if e.DumpErr != nil {
		msg += " (dump failed: " + e.DumpErr.Error() + ")"
	}
	return msg
}

// Unwrap returns ErrDataMiscompare or ErrMetadataMiscompare, followed by
// DumpErr when a dump failed.
func (e *MiscompareError) Unwrap() []error {
	errs := []error{pkg.ErrDataMiscompare}
	if e.Region == RegionMetadata {
		errs[0] = pkg.ErrMetadataMiscompare
	}
	if e.DumpErr != nil {
		errs = append(errs, e.DumpErr)
	}
	return errs
}

// Verifier compares read results against regenerated patterns.
type Verifier struct {
	sink DiagnosticSink
}

// NewVerifier returns a verifier dumping mismatched buffers to sink. A nil
// sink disables dumps.
func NewVerifier(sink DiagnosticSink) *Verifier {
	return &Verifier{sink: sink}
}

// Verify regenerates the expected data (and metadata, when result carries
// a metadata region) and compares it byte for byte. It returns nil on a
// match and a *MiscompareError otherwise.
func (v *Verifier) Verify(result ReadResult, kind PatternKind, seed, length, metaLength uint64) error {
	expected := Expected(kind, seed, length)
	if err := v.compare(RegionData, result.Data, expected,
		LabelReadPayload, LabelWrittenPayload); err != nil {
		return err
	}

	if result.Meta == nil {
		return nil
	}
	expected = Expected(kind, seed, metaLength)
	return v.compare(RegionMetadata, result.Meta, expected,
		LabelMetaReadPayload, LabelMetaWritePayload)
}

func (v *Verifier) compare(region Region, actual, expected []byte, actualLabel, expectedLabel string) error {
	off, ok := firstDifference(actual, expected)
	if ok {
		return nil
	}

	e := &MiscompareError{
		Region: region,
		Offset: uint64(off),
		Length: uint64(len(expected)),
	}
	if off < len(expected) {
		e.Expected = expected[off]
	}
	if off < len(actual) {
		e.Actual = actual[off]
	}
	var dumpErrs []error
	for _, d := range []struct {
		data  []byte
		label string
	}{{actual, actualLabel}, {expected, expectedLabel}} {
		ref, err := v.dump(d.data, d.label)
		if err != nil {
			dumpErrs = append(dumpErrs, err)
			continue
		}
		if ref != "" {
			e.Artifacts = append(e.Artifacts, ref)
		}
	}
	e.DumpErr = errors.Join(dumpErrs...)

	pkg.LogError(pkg.ComponentVerifier, "miscompare",
		"region", region,
		"offset", e.Offset,
		"expected", e.Expected,
		"actual", e.Actual,
		"artifacts", e.Artifacts,
		"dump_error", e.DumpErr)

	return e
}

// dump returns the artifact reference for data, or "" when no sink is
// configured.
func (v *Verifier) dump(data []byte, label string) (string, error) {
	if v.sink == nil {
		return "", nil
	}
	ref, err := v.sink.Dump(data, label)
	if err != nil {
		return "", fmt.Errorf("%s: %w", label, err)
	}
	return ref, nil
}

// firstDifference returns the first index at which a and b differ, and
// true when they are identical.
func firstDifference(a, b []byte) (int, bool) {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i, false
		}
	}
	if len(a) != len(b) {
		return n, false
	}
	return 0, true
}
