package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ardnew/prpsweep/config"
	"github.com/ardnew/prpsweep/sweep"
)

func newPlanCmd(o *options) *cobra.Command {
	var (
		steps    bool
		boundary bool
		mdtsSize string
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the steps a sweep would execute.",
		Long: `Print the plan for a geometry without touching a controller: the ` +
			`number of offsets and steps, the offsets cut short by the transfer ` +
			`ceiling, and optionally every step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := planGeometry(o.cfg, mdtsSize)
			if err != nil {
				return err
			}
			return printPlan(cmd, sweep.NewPlan(g, sweep.WithSeed(o.cfg.Seed)), steps, boundary)
		},
	}

	d := config.Default()
	fs := cmd.Flags()
	o.configFlag(fs, "page-size", humanize.IBytes(d.PageSize), "memory page size")
	o.configFlag(fs, "lba-size", humanize.IBytes(d.LBASize), "logical block data size")
	o.configFlag(fs, "metadata-size", "0", "separate metadata bytes per block")
	o.configFlag(fs, "seed", fmt.Sprint(d.Seed), "fuzz generator seed")
	fs.StringVar(&mdtsSize, "max-transfer", "unlimited", "transfer ceiling in bytes")
	fs.BoolVar(&steps, "steps", false, "list every step")
	fs.BoolVar(&boundary, "boundary", false, "list only steps near either end of the page (implies --steps)")

	return cmd
}

func planGeometry(cfg config.Config, maxTransfer string) (sweep.Geometry, error) {
	g := sweep.Geometry{
		PageSize:         cfg.PageSize,
		UnitDataSize:     cfg.LBASize,
		MetadataUnitSize: cfg.MetadataSize,
	}
	if maxTransfer != "" && maxTransfer != "unlimited" {
		n, err := humanize.ParseBytes(maxTransfer)
		if err != nil {
			return g, fmt.Errorf("--max-transfer %q: %w", maxTransfer, err)
		}
		g.MaxTransferSize = n
	}
	return g, g.Validate()
}

func printPlan(cmd *cobra.Command, p *sweep.Plan, steps, boundary bool) error {
	g := p.Geometry()
	s := p.Summary()

	printf(cmd, "geometry:  %s\n", g)
	printf(cmd, "offsets:   %d (0 to %d by 4)\n", s.Offsets, g.LastOffset())
	printf(cmd, "steps:     %d\n", s.Steps)
	printf(cmd, "truncated: %d\n", s.Truncated)
	printf(cmd, "data:      %s each way\n", humanize.IBytes(s.Bytes))

	if !steps && !boundary {
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "step\toffset\tblocks\tbytes\tpattern\tseed\tcdw8\tcdw9\t")
	for step := range p.Steps() {
		if boundary && !step.Boundary {
			continue
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t%d\t%#08x\t%#08x\t\n",
			step.Index, step.PageOffset, step.BlockCount, step.DataLength,
			step.Pattern, step.Seed, step.Fuzz[0], step.Fuzz[1])
	}
	return w.Flush()
}
