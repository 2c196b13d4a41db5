package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ardnew/prpsweep/config"
	"github.com/ardnew/prpsweep/pkg"
)

// Exit codes.
const (
	exitFailure    = 1 // Sweep or setup failed
	exitMiscompare = 2 // Data or metadata read back differently
	exitUsage      = 3 // Invalid configuration
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, pkg.ErrDataMiscompare), errors.Is(err, pkg.ErrMetadataMiscompare):
		return exitMiscompare
	case errors.Is(err, pkg.ErrInvalidParameter):
		return exitUsage
	default:
		return exitFailure
	}
}

// options is the state shared by all subcommands.
type options struct {
	envFiles []string
	verbose  bool
	cfg      config.Config

	// configFlags names the flags that map onto PRPSWEEP_* variables.
	configFlags map[string]bool
}

func newRootCmd() *cobra.Command {
	o := &options{configFlags: make(map[string]bool)}

	root := &cobra.Command{
		Use:   "prpsweep",
		Short: "Sweep NVMe PRP page offsets with multi-block writes and reads.",
		Long: `prpsweep writes a patterned payload at every dword-aligned offset of a ` +
			`memory page, for every block count that fits in that page, reads it ` +
			`back and verifies data and metadata. It runs against a simulated ` +
			`controller or a Linux NVMe namespace.`,
		SilenceUsage:      true,
		PersistentPreRunE: o.load,
	}

	flags := root.PersistentFlags()
	flags.StringSliceVar(&o.envFiles, "env", nil, "read PRPSWEEP_* settings from these .env files (default ./.env)")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")
	o.configFlag(flags, "log-level", "warn", "minimum log level (debug, info, warn, error)")
	o.configFlag(flags, "log-format", "text", "log format (text, json)")

	root.AddCommand(newRunCmd(o), newPlanCmd(o), newVersionCmd())
	return root
}

// configFlag defines a string flag whose value, when set, overrides the
// PRPSWEEP_* variable of the same name.
func (o *options) configFlag(fs *pflag.FlagSet, name, value, usage string) {
	fs.String(name, value, usage)
	o.configFlags[name] = true
}

// load assembles the configuration: defaults, .env files and environment,
// then explicitly set flags.
func (o *options) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(o.envFiles...)
	if err != nil {
		return err
	}

	overrides := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if o.configFlags[f.Name] {
			key := config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			overrides[key] = f.Value.String()
		}
	})
	if err := cfg.Apply(overrides); err != nil {
		return err
	}

	if o.verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	pkg.SetLogLevel(cfg.LogLevel)
	pkg.SetLogFormat(os.Stderr, cfg.LogFormat)

	o.cfg = cfg
	pkg.LogDebug(pkg.ComponentEngine, "configuration loaded", "config", cfg.String())
	return nil
}

// printf writes to the command's standard output.
func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
