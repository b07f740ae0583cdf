package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qaiserfcc/helpDesk-sub001/internal/client/session"
)

func newLoginCommand(opts *rootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("DESK_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("email and password are required (use --password or DESK_PASSWORD)")
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			resp, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			sess, err := resp.Session()
			if err != nil {
				return err
			}
			if err := a.sessions.Save(cmd.Context(), sess); err != nil {
				return fmt.Errorf("failed to store session: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", sess.Email, sess.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.sessions.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			sess, err := a.sessions.Load(cmd.Context())
			if errors.Is(err, session.ErrNoSession) {
				stale, staleErr := a.sessions.IsStale(cmd.Context())
				if staleErr == nil && stale {
					fmt.Fprintln(out, "Session expired; run `deskctl login` again")
					return nil
				}
				fmt.Fprintln(out, "Not signed in")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s <%s>\n", sess.FullName, sess.Email)
			fmt.Fprintf(out, "  id:   %s\n", sess.UserID)
			fmt.Fprintf(out, "  role: %s\n", sess.Role)
			return nil
		},
	}
}
