package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/shelfsync/internal/config"
	"github.com/mrlokans/shelfsync/internal/entrypoint"
	"github.com/mrlokans/shelfsync/internal/reconcile"
)

func newReconcileCommand() *cobra.Command {
	var direction, policy string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.NewConfig()
			if direction != "" {
				cfg.Sync.Direction = direction
			}
			if policy != "" {
				cfg.Sync.Policy = policy
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := entrypoint.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Engine.Run(ctx, app.Direction, app.Policy)
			out := cmd.OutOrStdout()
			if result != nil {
				printPassResult(cmd, result, verbose)
			}
			if err != nil {
				failure(cmd.ErrOrStderr(), "reconcile: %v", err)
				return err
			}
			if result.Failed > 0 {
				warn(out, "Pass finished with %d failed items", result.Failed)
				return nil
			}
			success(out, "Pass finished in %s", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "", "catalog_to_library, library_to_catalog, catalog_to_extension or bidirectional")
	cmd.Flags().StringVar(&policy, "policy", "", "conflict policy, e.g. use_latest_modified")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every error entry")
	return cmd
}

func printPassResult(cmd *cobra.Command, r *reconcile.PassResult, verbose bool) {
	out := cmd.OutOrStdout()
	header(out, fmt.Sprintf("Reconcile %s (%s)", r.Direction, r.Policy))
	fmt.Fprintf(out, "  synced:     %d\n", r.Synced)
	fmt.Fprintf(out, "  failed:     %d\n", r.Failed)
	fmt.Fprintf(out, "  conflicted: %d\n", r.Conflicted)
	fmt.Fprintf(out, "  skipped:    %d\n", r.Skipped)
	fmt.Fprintf(out, "  deleted:    %d\n", r.Deleted)
	if r.IntentsReplayed > 0 {
		fmt.Fprintf(out, "  replayed:   %d\n", r.IntentsReplayed)
	}
	if len(r.Errors) == 0 {
		return
	}
	if !verbose {
		dim.Fprintf(out, "  %d errors (use -v to list)\n", len(r.Errors)+r.ErrorsDropped)
		return
	}
	for _, e := range r.Errors {
		red.Fprintf(out, "  [%s] ", e.Kind)
		fmt.Fprint(out, e.Message)
		if e.Context != "" {
			dim.Fprintf(out, " (%s)", e.Context)
		}
		fmt.Fprintln(out)
	}
	if r.ErrorsDropped > 0 {
		dim.Fprintf(out, "  ... %d more not recorded\n", r.ErrorsDropped)
	}
}
