package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/entrypoint"
)

func newRepointCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repoint <catalog|extension> <path>",
		Short: "Point a store at a new file and persist the choice",
		Long: `Validate the file at <path>, switch the store to it and record the new
location in the settings document. A running server picks the setting up on
its next start; use the HTTP endpoint to repoint a live server.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := entrypoint.Build(ctx, config.NewConfig())
			if err != nil {
				return err
			}
			defer app.Close()

			result := app.Stores.RepointStore(ctx, args[0], args[1])
			if !result.Success {
				failure(cmd.ErrOrStderr(), "repoint %s: %s", args[0], result.Message)
				return fmt.Errorf("repoint failed")
			}
			success(cmd.OutOrStdout(), "%s", result.Message)
			return nil
		},
	}
}
