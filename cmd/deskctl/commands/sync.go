package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qaiserfcc/helpDesk-sub001/internal/client/syncer"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued writes now, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			a.monitor.Check(ctx)

			report, err := a.engine.RunOnce(ctx)
			if errors.Is(err, syncer.ErrOffline) {
				pending, _ := a.queue.PendingCount(ctx)
				fmt.Fprintf(out, "Service unreachable; %d write(s) stay queued\n", pending)
				return err
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Synced %d write(s)\n", report.Synced)
			if report.Failed != nil {
				fmt.Fprintf(out, "Stopped at %s: %v\n", report.Failed, report.Err)
				fmt.Fprintf(out, "%d write(s) still pending\n", report.Pending)
				return fmt.Errorf("sync halted at %s", report.Failed)
			}
			return nil
		},
	}
}
