package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ardnew/prpsweep/mem"
	"github.com/ardnew/prpsweep/metrics"
	"github.com/ardnew/prpsweep/nvme"
	"github.com/ardnew/prpsweep/pkg"
)

// DefaultCommandTimeout bounds each submitted command.
const DefaultCommandTimeout = 5 * time.Second

// DefaultNSID is the namespace swept when none is configured.
const DefaultNSID = 1

// State is the position of the engine in a run.
type State int32

// Engine states.
const (
	StateIdle State = iota
	StateGeometryLoaded
	StateBuildWrite
	StateDispatchWrite
	StateBuildRead
	StateDispatchRead
	StateVerify
	StateDone
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGeometryLoaded:
		return "geometry-loaded"
	case StateBuildWrite:
		return "build-write"
	case StateDispatchWrite:
		return "dispatch-write"
	case StateBuildRead:
		return "build-read"
	case StateDispatchRead:
		return "dispatch-read"
	case StateVerify:
		return "verify"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Report summarizes a run.
type Report struct {
	Geometry  Geometry
	Steps     uint64        // Steps written, read, and verified
	Offsets   uint64        // Offsets with at least one executed step
	Truncated uint64        // Offsets cut short by the transfer ceiling
	Bytes     uint64        // Data bytes written (and read back)
	Duration  time.Duration // Wall time of the run
	Failed    *Step         // Step that stopped the run, if any
}

// Option configures an Engine.
type Option func(*Engine)

// WithNSID sets the namespace to sweep.
func WithNSID(nsid uint32) Option {
	return func(e *Engine) {
		e.nsid = nsid
	}
}

// WithPlanOptions passes options through to the plan of each run.
func WithPlanOptions(opts ...PlanOption) Option {
	return func(e *Engine) {
		e.planOpts = append(e.planOpts, opts...)
	}
}

// WithCommandTimeout bounds each submitted command.
func WithCommandTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithAllocator sets the allocator payload buffers come from. The default
// allocates from the heap into a private address space, which is only
// useful with transports that do not dereference bus addresses.
func WithAllocator(a mem.Allocator) Option {
	return func(e *Engine) {
		e.allocator = a
	}
}

// WithSink sets where mismatched buffers are dumped.
func WithSink(sink DiagnosticSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// Engine drives a sweep: for every planned step it writes a patterned
// payload, reads it back into fresh buffers, and verifies the result. The
// first failure ends the run.
type Engine struct {
	source    GeometrySource
	transport Transport

	nsid      uint32
	timeout   time.Duration
	allocator mem.Allocator
	sink      DiagnosticSink
	recorder  *metrics.Recorder
	planOpts  []PlanOption

	state   atomic.Int32
	running atomic.Bool
}

// NewEngine returns an engine reading geometry from source and submitting
// commands through transport.
func NewEngine(source GeometrySource, transport Transport, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		transport: transport,
		nsid:      DefaultNSID,
		timeout:   DefaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Run executes one complete sweep. It returns the report of what was
// executed and the error that ended the run, if any.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		return Report{}, pkg.ErrAlreadyRunning
	}
	defer e.running.Store(false)

	start := time.Now()
	e.setState(StateIdle)

	report, err := e.run(ctx)
	report.Duration = time.Since(start)

	if err != nil {
		e.setState(StateFailed)
		pkg.LogError(pkg.ComponentEngine, "sweep failed",
			"steps", report.Steps,
			"duration", report.Duration,
			"error", err)
		return report, err
	}

	e.setState(StateDone)
	pkg.LogInfo(pkg.ComponentEngine, "sweep passed",
		"steps", report.Steps,
		"offsets", report.Offsets,
		"truncated", report.Truncated,
		"bytes", report.Bytes,
		"duration", report.Duration)
	return report, nil
}

func (e *Engine) run(ctx context.Context) (Report, error) {
	var report Report

	g, err := LoadGeometry(e.source)
	if err != nil {
		return report, err
	}
	report.Geometry = g
	if g.ProtectionType != 0 {
		return report, fmt.Errorf("%w: end-to-end protection type %d namespaces are deferred",
			pkg.ErrUnsupportedNamespaceFeature, g.ProtectionType)
	}
	e.setState(StateGeometryLoaded)
	pkg.LogInfo(pkg.ComponentEngine, "geometry loaded", "geometry", g.String())

	if !g.Testable() {
		pkg.LogWarn(pkg.ComponentEngine, "page size smaller than LBA data size, nothing to test",
			"page", g.PageSize,
			"lba", g.UnitDataSize)
		return report, nil
	}

	allocator := e.allocator
	if allocator == nil {
		allocator = mem.NewHeapAllocator(mem.NewSpace(g.PageSize))
	}
	builder := NewBuilder(g, e.nsid, allocator)
	verifier := NewVerifier(e.sink)

	opts := append([]PlanOption{}, e.planOpts...)
	opts = append(opts, WithTruncateHook(func(uint64, uint64) {
		report.Truncated++
		e.recorder.Truncation()
	}))
	plan := NewPlan(g, opts...)

	lastOffset := ^uint64(0)
	for step := range plan.Steps() {
		if step.PageOffset != lastOffset {
			report.Offsets++
			lastOffset = step.PageOffset
			e.recorder.Offset(step.PageOffset)
		}

		if err := e.execute(ctx, builder, verifier, step); err != nil {
			e.recorder.Step(metrics.ResultFail)
			report.Failed = &step
			return report, fmt.Errorf("step %d (offset %d, %d blocks): %w",
				step.Index, step.PageOffset, step.BlockCount, err)
		}

		e.recorder.Step(metrics.ResultPass)
		report.Steps++
		report.Bytes += step.DataLength
	}

	return report, nil
}

// execute writes, reads back, and verifies one step. The buffers of the step
// are released before it returns.
func (e *Engine) execute(ctx context.Context, b *Builder, v *Verifier, step Step) error {
	e.setState(StateBuildWrite)
	wr, err := b.Write(step)
	if err != nil {
		return err
	}
	defer wr.Release()

	e.setState(StateDispatchWrite)
	if err := e.dispatch(ctx, wr); err != nil {
		return err
	}
	e.recorder.Bytes(metrics.DirectionWrite, step.DataLength)

	e.setState(StateBuildRead)
	rd, err := b.Read(step)
	if err != nil {
		return err
	}
	defer rd.Release()

	e.setState(StateDispatchRead)
	if err := e.dispatch(ctx, rd); err != nil {
		return err
	}
	e.recorder.Bytes(metrics.DirectionRead, step.DataLength)

	e.setState(StateVerify)
	if err := v.Verify(rd.Result(), step.Pattern, step.Seed, step.DataLength, step.MetaLength); err != nil {
		return err
	}

	pkg.LogVerbose(step.Boundary, pkg.ComponentEngine, "step passed",
		"index", step.Index,
		"offset", step.PageOffset,
		"blocks", step.BlockCount)
	return nil
}

// dispatch submits one command and converts a failed submission or a
// non-success completion into ErrTransportFailure.
func (e *Engine) dispatch(ctx context.Context, o *IO) error {
	op := nvme.OpcodeName(o.Command.Opcode())

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	start := time.Now()
	cpl, err := e.transport.Submit(cctx, o.Command)
	elapsed := time.Since(start)
	cancel()
	e.recorder.Command(op, elapsed)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, pkg.ErrTimeout) {
			err = fmt.Errorf("%w: %w", pkg.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %s: %w", pkg.ErrTransportFailure, op, err)
	}
	if err := cpl.Status.Err(); err != nil {
		return fmt.Errorf("%w: %s cid %d: %w", pkg.ErrTransportFailure, op, cpl.CID, err)
	}

	pkg.LogVerbose(o.Step.Boundary, pkg.ComponentTransport, "command completed",
		"op", op,
		"cid", cpl.CID,
		"elapsed", elapsed)
	return nil
}
