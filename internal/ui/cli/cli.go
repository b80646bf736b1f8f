// Package cli is the relocate command line: it parses arguments, loads the
// project configuration and drives one move run.
package cli

import (
	"github.com/spf13/cobra"
)

const versionString = "1.0.0"

const (
	exitOK       = 0
	exitFailed   = 1
	exitInternal = 2
)

type cliOptions struct {
	configPath string
	alias      string
	noAutomove bool
	dryRun     bool
	diff       bool
	verbose    bool
	workers    int
	report     string
}

func newRootCommand(opts *cliOptions, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relocate [flags] SOURCE... DESTINATION",
		Short: "Move or rename Python symbols and modules and fix every reference",
		Long: `relocate moves Python modules, packages and top-level symbols and rewrites
every import and reference in the project to the new location.

Sources and destination are dotted names (foo.bar.myfunc), .py files or
package directories relative to the current directory.

Examples:
  # Rename a function
  relocate foo.bar.myfunc foo.bar.new_name

  # Move two modules into an existing package
  relocate foo/bar.py foo/baz.py newfoo

  # Show the edits without writing them
  relocate --dry-run foo.bar.myfunc foo.baz
`,
		Version:       versionString,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file (default: relocate.toml in the project root)")
	flags.StringVar(&opts.alias, "alias", "", "Import style for rewritten references: auto, from, none, relative or a local name")
	flags.BoolVar(&opts.noAutomove, "no-automove", false, "Only fix references; do not move definitions or files")
	flags.BoolVarP(&opts.dryRun, "dry-run", "n", false, "Print a unified diff instead of writing files")
	flags.BoolVar(&opts.diff, "diff", false, "Print a unified diff of the applied edits")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.IntVar(&opts.workers, "workers", 0, "Parallel workers (default: config or GOMAXPROCS)")
	flags.StringVar(&opts.report, "report", "", "Write a markdown run report to this path")
	return cmd
}
