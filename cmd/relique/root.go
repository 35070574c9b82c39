package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// sysexits(3) codes. Commands call os.Exit with these directly after
// logging the failure, so scripts wrapping the CLI can tell
// configuration problems apart from runtime ones.
const (
	exitDataErr  = 65 // EX_DATAERR: the job store could not be opened
	exitSoftware = 70 // EX_SOFTWARE: runtime failure
	exitConfig   = 78 // EX_CONFIG: configuration errors
)

// rootFlags carries the global flags shared by every subcommand.
type rootFlags struct {
	config string
	debug  bool
}

// configPath returns the configuration file to load, falling back to
// the role's default file name when -c is not given.
func (f *rootFlags) configPath(def string) string {
	if f.config != "" {
		return f.config
	}
	return def
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "relique",
		Short:         "Backup utility based on librsync",
		Long:          "Relique is a rsync-based backup system: a central server pushes configuration\nto client daemons, which back up their modules on schedule by sending binary\ndeltas of every file.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Configuration file to use")
	root.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "Set log level to debug")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServerCmd(flags))
	root.AddCommand(newClientCmd(flags))
	root.AddCommand(newJobsCmd(flags))
	root.AddCommand(newBackupCmd(flags))
	root.AddCommand(newRestoreCmd(flags))

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("relique %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
