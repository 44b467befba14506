package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/database"
)

func newInitCatalogCommand() *cobra.Command {
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:   "init-catalog",
		Short: "Create an empty catalog database",
		Long: `Create an empty catalog database with the books schema.

The server never creates a missing catalog on its own. Run this once before
pointing the server at a fresh location.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = config.NewConfig().Stores.CatalogPath
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("catalog %s already exists (use --force to add missing tables)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := database.BootstrapCatalog(path); err != nil {
				failure(cmd.ErrOrStderr(), "init-catalog: %v", err)
				return err
			}
			success(cmd.OutOrStdout(), "Catalog ready at %s", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "catalog file (default: CATALOG_PATH)")
	cmd.Flags().BoolVar(&force, "force", false, "run against an existing file")
	return cmd
}
