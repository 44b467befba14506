package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/database"
	"github.com/mrlokans/shelfsync/internal/entrypoint"
	"github.com/mrlokans/shelfsync/internal/scheduler"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store availability and pending differences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := entrypoint.Build(ctx, config.NewConfig())
			if err != nil {
				return err
			}
			defer app.Close()

			out := cmd.OutOrStdout()
			header(out, "Stores")
			for _, st := range app.Stores.Status() {
				fmt.Fprintf(out, "  %-10s ", st.Kind)
				stateColor(string(st.State)).Fprintf(out, "%-12s", st.State)
				dim.Fprintf(out, " %s", st.Path)
				if st.Error != "" {
					red.Fprintf(out, "  %s", st.Error)
				}
				fmt.Fprintln(out)
			}

			if !app.Manager.IsAvailable(database.StoreCatalog) || !app.Manager.IsAvailable(database.StoreExtension) {
				warn(out, "Sync status needs both stores")
				return nil
			}

			status, err := app.Engine.SyncStatus(ctx)
			if err != nil {
				return err
			}
			header(out, "Sync")
			fmt.Fprintf(out, "  in sync:        %d\n", status.InSync)
			fmt.Fprintf(out, "  catalog only:   %d\n", len(status.CatalogOnly))
			fmt.Fprintf(out, "  extension only: %d\n", len(status.ExtensionOnly))
			fmt.Fprintf(out, "  conflicted:     %d\n", len(status.Conflicted))

			if next, err := nextScheduled(app.Config); err == nil && !next.IsZero() {
				dim.Fprintf(out, "  next scheduled pass: %s\n", next.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func nextScheduled(cfg *config.Config) (time.Time, error) {
	if !cfg.Sync.Enabled {
		return time.Time{}, nil
	}
	return scheduler.NextRun(cfg.Sync.Schedule, time.Now())
}
