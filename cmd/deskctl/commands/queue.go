package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/qaiserfcc/helpDesk-sub001/internal/core/ports"
)

// newQueueCommand groups the commands that append one write each.
func newQueueCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Queue a ticket change for the next sync",
	}

	cmd.AddCommand(
		newQueueCreateCommand(opts),
		newQueueStatusCommand(opts),
		newQueueAssignCommand(opts),
	)

	return cmd
}

func newQueueCreateCommand(opts *rootOptions) *cobra.Command {
	var title, description, priority, issueType string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Queue a new ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return enqueue(cmd, opts, ports.WriteCreateTicket, map[string]string{
				"title":       title,
				"description": description,
				"priority":    strings.ToUpper(priority),
				"issueType":   strings.ToUpper(issueType),
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "ticket title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "ticket description")
	cmd.Flags().StringVar(&priority, "priority", "MEDIUM", "LOW, MEDIUM or HIGH")
	cmd.Flags().StringVar(&issueType, "type", "OTHER", "HARDWARE, SOFTWARE, NETWORK, ACCESS or OTHER")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newQueueStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [ticket-id] [status]",
		Short: "Queue a status change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTicketID(args[0])
			if err != nil {
				return err
			}
			return enqueue(cmd, opts, ports.WriteUpdateStatus, map[string]any{
				"ticketId": id,
				"status":   strings.ToUpper(args[1]),
			})
		},
	}
}

func newQueueAssignCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign [ticket-id] [assignee-id]",
		Short: "Queue an assignment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTicketID(args[0])
			if err != nil {
				return err
			}
			assignee, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid assignee id %q: %w", args[1], err)
			}
			return enqueue(cmd, opts, ports.WriteAssignTicket, map[string]any{
				"ticketId":   id,
				"assigneeId": assignee,
			})
		},
	}
}

func enqueue(cmd *cobra.Command, opts *rootOptions, kind string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer a.close()

	id, err := a.queue.Enqueue(cmd.Context(), kind, raw)
	if err != nil {
		return err
	}
	pending, err := a.queue.PendingCount(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Queued %s %s (%d pending)\n", kind, id, pending)
	return nil
}

func parseTicketID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ticket id %q", s)
	}
	return id, nil
}

func newPendingCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List queued writes that have not synced",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			writes, err := a.queue.ListPending(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(writes) == 0 {
				fmt.Fprintln(out, "Nothing pending")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tSTATUS\tATTEMPTS\tLAST ERROR")
			for _, w := range writes {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", w.ID, w.Kind, w.Status, w.Attempts, w.LastError)
			}
			return tw.Flush()
		},
	}
}
