package sweep

import (
	"iter"
	"math/rand/v2"

	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
)

// DefaultSeed seeds the reserved-field fuzz generator.
const DefaultSeed = 51

// offsetStride is the distance between consecutive first-page offsets.
// PRP entries must be dword aligned.
const offsetStride = 4

// boundaryWindow is how close to either end of the page an offset must be
// for its steps to be flagged as boundary steps.
const boundaryWindow = 8

// RandSource produces the reserved-field fuzz values.
type RandSource interface {
	Uint32() uint32
}

// SourceFunc returns a RandSource seeded with seed.
type SourceFunc func(seed uint64) RandSource

// NewPCGSource returns a PCG generator seeded with seed.
func NewPCGSource(seed uint64) RandSource {
	return rand.New(rand.NewPCG(seed, seed))
}

// Step is one (first-page offset, block count) combination to write, read
// back, and verify.
type Step struct {
	Index      uint64      // Position in the plan, from zero
	PageOffset uint64      // Payload offset within the first page
	BlockCount uint64      // Logical blocks transferred, one based
	DataLength uint64      // BlockCount times the LBA data size
	MetaLength uint64      // BlockCount times the metadata size
	Pattern    PatternKind // Generator for data and metadata
	Seed       uint64      // Pattern seed, PageOffset+BlockCount
	Fuzz       [2]uint32   // Values placed in CDW8 and CDW9
	Boundary   bool        // Offset lies near either end of the page
}

// PlanSummary counts what a plan would execute.
type PlanSummary struct {
	Offsets   uint64 // Offsets with at least one step
	Steps     uint64 // Total steps
	Truncated uint64 // Offsets whose block counts were cut by the transfer ceiling
	Bytes     uint64 // Data bytes written (and read back) over all steps
}

// PlanOption configures a Plan.
type PlanOption func(*Plan)

// WithSeed sets the fuzz generator seed.
func WithSeed(seed uint64) PlanOption {
	return func(p *Plan) {
		p.seed = seed
	}
}

// WithSource replaces the fuzz generator.
func WithSource(fn SourceFunc) PlanOption {
	return func(p *Plan) {
		if fn != nil {
			p.source = fn
		}
	}
}

// WithTruncateHook registers fn to be called whenever the transfer ceiling
// stops the block counts of an offset. blockCount is the first count not
// emitted.
func WithTruncateHook(fn func(pageOffset, blockCount uint64)) PlanOption {
	return func(p *Plan) {
		p.truncated = fn
	}
}

// Plan enumerates every step of a sweep over one geometry.
type Plan struct {
	geometry  Geometry
	seed      uint64
	source    SourceFunc
	truncated func(pageOffset, blockCount uint64)
}

// NewPlan returns the plan for geometry.
func NewPlan(geometry Geometry, opts ...PlanOption) *Plan {
	p := &Plan{
		geometry: geometry,
		seed:     DefaultSeed,
		source:   NewPCGSource,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Geometry returns the geometry the plan was built for.
func (p *Plan) Geometry() Geometry {
	return p.geometry
}

// Steps returns the lazy sequence of steps. Offsets ascend from zero in
// dword strides and, for each offset, block counts ascend from one until
// the page or a transfer ceiling (MDTS or the NLB range) is exhausted. Every iteration reseeds
// the fuzz generator, so iterating twice yields identical steps.
func (p *Plan) Steps() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		rng := p.source(p.seed)
		p.walk(func(s Step) bool {
			if s.BlockCount&1 == 1 {
				s.Fuzz = fuzzPair(rng)
			}
			pkg.LogVerbose(s.Boundary, pkg.ComponentPlanner, "step planned",
				"index", s.Index,
				"offset", s.PageOffset,
				"blocks", s.BlockCount,
				"pattern", s.Pattern,
				"fuzz", s.Fuzz)
			return yield(s)
		}, func(off, n uint64) {
			pkg.LogVerbose(p.boundary(off), pkg.ComponentPlanner, "transfer ceiling reached",
				"offset", off,
				"blocks", n,
				"length", n*p.geometry.UnitDataSize,
				"ceiling", p.geometry.MaxTransferSize)
			if p.truncated != nil {
				p.truncated(off, n)
			}
		})
	}
}

// Summary counts the steps of the plan without generating fuzz values or
// allocating buffers.
func (p *Plan) Summary() PlanSummary {
	var (
		sum  PlanSummary
		last = ^uint64(0)
	)
	p.walk(func(s Step) bool {
		if s.PageOffset != last {
			sum.Offsets++
			last = s.PageOffset
		}
		sum.Steps++
		sum.Bytes += s.DataLength
		return true
	}, func(uint64, uint64) {
		sum.Truncated++
	})
	return sum
}

// walk visits the steps in plan order without fuzz values.
func (p *Plan) walk(visit func(Step) bool, truncated func(pageOffset, blockCount uint64)) {
	g := p.geometry
	if g.UnitDataSize == 0 || !g.Testable() {
		return
	}

	var index uint64
	for off := uint64(0); off <= g.LastOffset(); off += offsetStride {
		boundary := p.boundary(off)
		maxBlocks := (g.PageSize - off) / g.UnitDataSize
		for n := uint64(1); n <= maxBlocks; n++ {
			length := n * g.UnitDataSize
			if n > nvme.MaxBlockCount || (g.MaxTransferSize > 0 && length > g.MaxTransferSize) {
				truncated(off, n)
				break
			}
			s := Step{
				Index:      index,
				PageOffset: off,
				BlockCount: n,
				DataLength: length,
				MetaLength: n * g.MetadataUnitSize,
				Pattern:    PatternFor(n),
				Seed:       off + n,
				Boundary:   boundary,
			}
			if !visit(s) {
				return
			}
			index++
		}
	}
}

// boundary reports whether off lies within boundaryWindow bytes of the
// first or last offset.
func (p *Plan) boundary(off uint64) bool {
	return off <= boundaryWindow || off+boundaryWindow >= p.geometry.LastOffset()
}

// fuzzPair draws a reserved-field fuzz pair, redrawing until at least one
// value is non-zero.
func fuzzPair(rng RandSource) [2]uint32 {
	for {
		f := [2]uint32{rng.Uint32(), rng.Uint32()}
		if f != [2]uint32{} {
			return f
		}
	}
}
