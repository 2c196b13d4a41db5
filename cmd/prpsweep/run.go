package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/ardnew/prpsweep/artifact"
	"github.com/ardnew/prpsweep/config"
	"github.com/ardnew/prpsweep/metrics"
	"github.com/ardnew/prpsweep/pkg"
	"github.com/ardnew/prpsweep/pkg/prof"
	"github.com/ardnew/prpsweep/sweep"
)

type runFlags struct {
	profile prof.Options
	job     string
}

func newRunCmd(o *options) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a sweep.",
		Long: `Execute a sweep against the simulated controller (--backend sim) or a ` +
			`Linux NVMe namespace (--backend linux --device /dev/nvmeXnY). The run ` +
			`stops at the first failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := o.cfg.Validate(); err != nil {
				return err
			}
			return runSweep(cmd, o.cfg, rf)
		},
	}

	d := config.Default()
	fs := cmd.Flags()
	o.configFlag(fs, "backend", d.Backend, "controller backend (sim, linux)")
	o.configFlag(fs, "device", d.Device, "namespace block device for the linux backend")
	o.configFlag(fs, "seed", strconv.FormatUint(d.Seed, 10), "fuzz generator seed")
	o.configFlag(fs, "nsid", strconv.FormatUint(uint64(d.NSID), 10), "namespace ID")
	o.configFlag(fs, "timeout", d.CommandTimeout.String(), "per-command timeout")
	o.configFlag(fs, "page-size", humanize.IBytes(d.PageSize), "memory page size (sim)")
	o.configFlag(fs, "lba-size", humanize.IBytes(d.LBASize), "logical block data size (sim)")
	o.configFlag(fs, "blocks", strconv.FormatUint(d.Blocks, 10), "namespace size in blocks (sim)")
	o.configFlag(fs, "metadata-size", "0", "separate metadata bytes per block (sim)")
	o.configFlag(fs, "mdts", strconv.Itoa(int(d.MDTS)), "max data transfer size exponent, 0 for unlimited (sim)")
	o.configFlag(fs, "pi", "0", "end-to-end protection type (sim)")
	o.configFlag(fs, "queue-depth", strconv.Itoa(int(d.QueueDepth)), "I/O queue depth (sim)")
	o.configFlag(fs, "namespace-file", "", "back the namespace with this file (sim)")
	o.configFlag(fs, "strict-prp2", "false", "reject a non-zero reserved PRP2 (sim)")
	o.configFlag(fs, "corrupt", "", "flip one byte of every read: data or metadata (sim)")
	o.configFlag(fs, "artifact-dir", d.ArtifactDir, "write miscompare dumps under this directory; empty disables them")
	o.configFlag(fs, "compress", "false", "zstd-compress miscompare dumps")
	o.configFlag(fs, "metrics-file", "", "write Prometheus metrics to this textfile after the run")
	o.configFlag(fs, "pushgateway", "", "push metrics to this Prometheus Pushgateway URL")

	fs.StringVar(&rf.job, "job", "prpsweep", "Pushgateway job name")
	fs.StringVar(&rf.profile.CPU, "cpuprofile", "", "write a CPU profile (profile builds)")
	fs.StringVar(&rf.profile.Heap, "memprofile", "", "write a heap profile (profile builds)")
	fs.BoolVar(&rf.profile.Block, "blockprofile", false, "record block and mutex contention (profile builds)")
	fs.StringVar(&rf.profile.Listen, "pprof", "", "serve /debug/pprof/ on this address (profile builds)")

	return cmd
}

func runSweep(cmd *cobra.Command, cfg config.Config, rf runFlags) error {
	var c cleanups
	defer c.run()
	atexit.Register(c.run)

	if rf.profile.Any() {
		if !prof.Enabled {
			pkg.LogWarn(pkg.ComponentEngine, "profiling flags ignored; rebuild with -tags profile")
		}
		session, err := prof.Start(rf.profile)
		if err != nil {
			return err
		}
		c.add(func() {
			if err := session.Stop(); err != nil {
				pkg.LogError(pkg.ComponentEngine, "write profile", "error", err)
			}
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	c.add(func() {
		if err := b.close(); err != nil {
			pkg.LogWarn(pkg.ComponentEngine, "close backend", "error", err)
		}
	})
	if b.describe != "" {
		printf(cmd, "controller: %s\n", b.describe)
	}

	opts := []sweep.Option{
		sweep.WithNSID(b.nsid),
		sweep.WithCommandTimeout(cfg.CommandTimeout),
		sweep.WithAllocator(b.allocator),
		sweep.WithPlanOptions(sweep.WithSeed(cfg.Seed)),
	}

	var dir *artifact.Dir
	if cfg.ArtifactDir != "" {
		if dir, err = artifact.New(cfg.ArtifactDir, artifact.WithCompression(cfg.Compress)); err != nil {
			return err
		}
		opts = append(opts, sweep.WithSink(dir))
	}

	recorder := metrics.NewRecorder()
	opts = append(opts, sweep.WithRecorder(recorder))
	c.add(func() { flushMetrics(recorder, cfg, rf.job, dir) })

	engine := sweep.NewEngine(b.source, b.transport, opts...)
	report, runErr := engine.Run(ctx)
	printReport(cmd, report, runErr)
	if dir != nil && len(dir.Written()) > 0 {
		printf(cmd, "artifacts: %s\n", dir.Path())
	}

	if runErr != nil && ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", runErr)
	}
	return runErr
}

func flushMetrics(r *metrics.Recorder, cfg config.Config, job string, dir *artifact.Dir) {
	if cfg.MetricsFile != "" {
		if err := r.WriteTextfile(cfg.MetricsFile); err != nil {
			pkg.LogError(pkg.ComponentEngine, "write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}
	if cfg.PushGateway != "" {
		instance := "local"
		if dir != nil {
			instance = dir.RunID()
		}
		if err := r.Push(cfg.PushGateway, job, instance); err != nil {
			pkg.LogError(pkg.ComponentEngine, "push metrics", "url", cfg.PushGateway, "error", err)
		}
	}
}

func printReport(cmd *cobra.Command, r sweep.Report, err error) {
	printf(cmd, "geometry: %s\n", r.Geometry)
	printf(cmd, "steps:    %d over %d offsets (%d truncated by the transfer ceiling)\n", r.Steps, r.Offsets, r.Truncated)
	printf(cmd, "data:     %s written and read back in %s\n",
		humanize.IBytes(r.Bytes), r.Duration.Round(time.Millisecond))
	if err == nil {
		printf(cmd, "result:   PASS\n")
		return
	}
	if r.Failed != nil {
		printf(cmd, "failed:   step %d offset %d blocks %d pattern %s seed %d fuzz %#08x/%#08x\n",
			r.Failed.Index, r.Failed.PageOffset, r.Failed.BlockCount,
			r.Failed.Pattern, r.Failed.Seed, r.Failed.Fuzz[0], r.Failed.Fuzz[1])
	}
	printf(cmd, "result:   FAIL: %v\n", err)
}
