// Package cli holds the shelfsync command line. Every command loads the same
// environment-driven configuration as the server.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mrlokans/shelfsync/internal/config"
)

// NewRootCommand builds the command tree. Running the binary without a
// subcommand starts the server.
func NewRootCommand(version string) *cobra.Command {
	var noColor bool

	root := &cobra.Command{
		Use:           "shelfsync",
		Short:         "Keep a book catalog and its companion store in sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(config.NewConfig(), version)
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newServeCommand(version),
		newInitCatalogCommand(),
		newReconcileCommand(),
		newStatusCommand(),
		newRepointCommand(),
	)
	return root
}
