package sweep

import (
	"fmt"

	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
)

// IO is a built command together with the buffers it references.
type IO struct {
	Step    Step
	Command *nvme.Command
	Data    *mem.Buffer
	Meta    *mem.Buffer // nil when the namespace carries no metadata
}

// Result returns the buffers of a completed read for verification.
func (o *IO) Result() ReadResult {
	r := ReadResult{Data: o.Data.Bytes()}
	if o.Meta != nil {
		r.Meta = o.Meta.Bytes()
	}
	return r
}

// Release frees the buffers referenced by the command.
func (o *IO) Release() {
	if o.Data != nil {
		o.Data.Release()
	}
	if o.Meta != nil {
		o.Meta.Release()
	}
}

// Builder constructs the write and read commands for plan steps. It
// performs no I/O.
type Builder struct {
	geometry  Geometry
	nsid      uint32
	allocator mem.Allocator
}

// NewBuilder returns a builder addressing namespace nsid.
func NewBuilder(geometry Geometry, nsid uint32, allocator mem.Allocator) *Builder {
	return &Builder{
		geometry:  geometry,
		nsid:      nsid,
		allocator: allocator,
	}
}

// Write returns the write command for step with its payload filled with the
// step pattern.
func (b *Builder) Write(step Step) (*IO, error) {
	o, err := b.build(nvme.OpWrite, step)
	if err != nil {
		return nil, err
	}
	Fill(o.Data.Bytes(), step.Pattern, step.Seed)
	if o.Meta != nil {
		Fill(o.Meta.Bytes(), step.Pattern, step.Seed)
	}
	return o, nil
}

// Read returns the read command for step. Its buffers hold the complement
// of the expected pattern so stale bytes cannot pass verification.
func (b *Builder) Read(step Step) (*IO, error) {
	o, err := b.build(nvme.OpRead, step)
	if err != nil {
		return nil, err
	}
	Complement(o.Data.Bytes(), step.Pattern, step.Seed)
	if o.Meta != nil {
		Complement(o.Meta.Bytes(), step.Pattern, step.Seed)
	}
	return o, nil
}

func (b *Builder) build(opcode uint8, step Step) (*IO, error) {
	if step.BlockCount == 0 || step.BlockCount > nvme.MaxBlockCount {
		return nil, fmt.Errorf("%w: block count %d", pkg.ErrInvalidParameter, step.BlockCount)
	}

	length := step.BlockCount * b.geometry.UnitDataSize
	data, err := b.allocator.AllocateAt(length, step.PageOffset)
	if err != nil {
		return nil, fmt.Errorf("allocate %d byte payload at offset %d: %w",
			length, step.PageOffset, err)
	}

	o := &IO{Step: step, Data: data}
	if metaLen := step.BlockCount * b.geometry.MetadataUnitSize; metaLen > 0 {
		if o.Meta, err = b.allocator.Allocate(metaLen, false); err != nil {
			data.Release()
			return nil, fmt.Errorf("allocate %d byte metadata: %w", metaLen, err)
		}
	}

	cmd := nvme.NewCommand(opcode, b.nsid)
	cmd.SetSLBA(0)
	cmd.SetNLB(uint16(step.BlockCount - 1))
	cmd.SetPRP1(data.Addr())
	cmd.SetDword(step.Fuzz[0], 8)
	cmd.SetDword(step.Fuzz[1], 9)
	if o.Meta != nil {
		cmd.SetMPTR(o.Meta.Addr())
	}
	o.Command = cmd

	pkg.LogVerbose(step.Boundary, pkg.ComponentBuilder, "command built",
		"cmd", cmd.String(),
		"offset", step.PageOffset,
		"pattern", step.Pattern,
		"seed", step.Seed)

	return o, nil
}
