package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qaiserfcc/helpDesk-sub001/internal/client/api"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/realtime"
	"github.com/qaiserfcc/helpDesk-sub001/internal/client/session"
	"github.com/qaiserfcc/helpDesk-sub001/internal/core/domain"
	apperrors "github.com/qaiserfcc/helpDesk-sub001/internal/core/errors"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [ticket-id...]",
		Short: "Stream live ticket changes and keep the queue draining",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseTicketID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.sessions.Load(ctx); err != nil {
				return fmt.Errorf("watch requires a session: %w", err)
			}
			return a.watch(ctx, cmd.OutOrStdout(), ids)
		},
	}
}

func (a *app) watch(ctx context.Context, out io.Writer, ids []int64) error {
	events, unsubscribe := a.realtime.Subscribe()
	defer unsubscribe()
	changes, stopChanges := a.monitor.Subscribe()
	defer stopChanges()

	for _, id := range ids {
		if err := a.realtime.SubscribeTicket(id); err != nil {
			return err
		}
	}

	a.monitor.Start(ctx)
	a.coordinator.Start(ctx)
	a.engine.Start(ctx)

	// Reconnecting with the current credential is a no-op, so the ticker
	// only dials after a drop or a rotation.
	ticker := time.NewTicker(a.cfg.HealthInterval)
	defer ticker.Stop()

	if a.monitor.Check(ctx) {
		if err := a.connectRealtime(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case online, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if !online {
				fmt.Fprintln(out, "offline: writes will queue until the service is back")
				a.realtime.Disconnect()
				continue
			}
			fmt.Fprintln(out, "online")
			if err := a.connectRealtime(ctx); err != nil {
				return err
			}
		case <-ticker.C:
			if !a.monitor.Online() {
				continue
			}
			if err := a.connectRealtime(ctx); err != nil {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			a.printEvent(ctx, out, ev)
		}
	}
}

// connectRealtime dials with the stored credential through the refresh
// coordinator, so a rejected handshake gets one refresh and one retry.
// Only a lost session is fatal.
func (a *app) connectRealtime(ctx context.Context) error {
	err := a.coordinator.Do(ctx, func(ctx context.Context, accessToken string) error {
		err := a.realtime.Connect(ctx, accessToken)
		if errors.Is(err, apperrors.ErrTransportRejected) {
			return fmt.Errorf("%w: %w", api.ErrAuthExpired, err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if _, loadErr := a.sessions.Load(ctx); errors.Is(loadErr, session.ErrNoSession) {
		return fmt.Errorf("session ended, run `deskctl login`: %w", err)
	}
	a.logger.Warn("realtime connect failed", "error", err)
	return nil
}

// printEvent prints the hint and the authoritative ticket state behind it.
func (a *app) printEvent(ctx context.Context, out io.Writer, ev realtime.Event) {
	switch ev.Name {
	case "subscription:ok":
		fmt.Fprintf(out, "watching ticket #%d\n", ev.TicketID)
		return
	case "subscription:error":
		fmt.Fprintf(out, "cannot watch ticket #%d: %s\n", ev.TicketID, ev.Data)
		return
	}

	fmt.Fprintf(out, "%s ticket #%d\n", ev.Name, ev.TicketID)
	if ev.TicketID <= 0 {
		return
	}

	var ticket *domain.TicketSnapshot
	err := a.coordinator.Do(ctx, func(ctx context.Context, accessToken string) error {
		var err error
		ticket, err = a.client.GetTicket(ctx, accessToken, ev.TicketID)
		return err
	})
	if err != nil {
		fmt.Fprintf(out, "  refetch failed: %v\n", err)
		return
	}

	assignee := "unassigned"
	if ticket.AssigneeID != nil {
		assignee = *ticket.AssigneeID
	}
	fmt.Fprintf(out, "  %s [%s/%s] %s, %s\n", ticket.Title, ticket.Status, ticket.Priority, ticket.IssueType, assignee)
}
