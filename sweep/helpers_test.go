package sweep

//go:generate mockgen -destination mock_sweep_test.go -package $GOPACKAGE -write_package_comment=false github.com/ardnew/prpsweep/sweep GeometrySource,Transport,DiagnosticSink

import (
	"context"
	"fmt"

	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/nvme"
)

// loopback is a Transport that services reads and writes to LBA 0 from
// memory, resolving PRP1 and MPTR through a mem.Space.
type loopback struct {
	space    *mem.Space
	unit     uint64
	metaUnit uint64

	data []byte
	meta []byte

	// flipData and flipMeta, when non-negative, name a byte of the next
	// read's data or metadata to corrupt.
	flipData int
	flipMeta int

	// failAt, when non-zero, makes the failAt-th submission complete with
	// an invalid field status.
	failAt int

	submitted int
	writes    []*nvme.Command
}

func newLoopback(space *mem.Space, unit, metaUnit uint64) *loopback {
	return &loopback{
		space:    space,
		unit:     unit,
		metaUnit: metaUnit,
		flipData: -1,
		flipMeta: -1,
	}
}

func (l *loopback) Submit(_ context.Context, cmd *nvme.Command) (nvme.Completion, error) {
	l.submitted++
	cpl := nvme.Completion{CID: cmd.CID(), SQID: 1}

	if l.failAt != 0 && l.submitted == l.failAt {
		cpl.Status = nvme.MakeStatus(nvme.SCTGeneric, nvme.SCInvalidField)
		return cpl, nil
	}

	n := cmd.BlockCount() * l.unit
	buf, err := l.space.Slice(cmd.PRP1(), n)
	if err != nil {
		return cpl, err
	}
	var mbuf []byte
	if l.metaUnit > 0 {
		if mbuf, err = l.space.Slice(cmd.MPTR(), cmd.BlockCount()*l.metaUnit); err != nil {
			return cpl, err
		}
	}

	switch cmd.Opcode() {
	case nvme.OpWrite:
		c := *cmd
		l.writes = append(l.writes, &c)
		l.data = append(l.data[:0], buf...)
		l.meta = append(l.meta[:0], mbuf...)
	case nvme.OpRead:
		copy(buf, l.data)
		copy(mbuf, l.meta)
		if l.flipData >= 0 && l.flipData < len(buf) {
			buf[l.flipData] ^= 0xFF
			l.flipData = -1
		}
		if l.flipMeta >= 0 && l.flipMeta < len(mbuf) {
			mbuf[l.flipMeta] ^= 0xFF
			l.flipMeta = -1
		}
	default:
		return cpl, fmt.Errorf("unexpected opcode %#x", cmd.Opcode())
	}
	return cpl, nil
}

// sequenceSource is a RandSource replaying fixed values.
type sequenceSource struct {
	values []uint32
	next   int
}

func (s *sequenceSource) Uint32() uint32 {
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

// recordingSink is a DiagnosticSink keeping every dump in memory.
type recordingSink struct {
	labels []string
	dumps  map[string][]byte
}

func (s *recordingSink) Dump(data []byte, label string) (string, error) {
	if s.dumps == nil {
		s.dumps = make(map[string][]byte)
	}
	s.labels = append(s.labels, label)
	s.dumps[label] = append([]byte(nil), data...)
	return "mem://" + label, nil
}

// collect returns every step of p.
func collect(p *Plan) []Step {
	var steps []Step
	for s := range p.Steps() {
		steps = append(steps, s)
	}
	return steps
}
