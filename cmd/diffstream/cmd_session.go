package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"diffstream/internal/session"
)

func newSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage diff sessions",
	}
	cmd.AddCommand(newSessionListCommand())
	cmd.AddCommand(newSessionShowCommand())
	cmd.AddCommand(newSessionCreateCommand())
	cmd.AddCommand(newSessionDeleteCommand())
	return cmd
}

func newSessionListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			sessions, err := a.client.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("No sessions yet."))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCASES\tUPDATED")
			for _, s := range sessions {
				updated := ""
				if !s.UpdatedAt.IsZero() {
					updated = s.UpdatedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Title, len(s.TestCases), updated)
			}
			return w.Flush()
		},
	}
}

func newSessionShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			sess, err := a.client.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styles.Title.Render(sess.Title))
			if sess.Description != "" {
				fmt.Fprintln(out, sess.Description)
			}
			for _, slot := range []session.Slot{session.SlotUser, session.SlotStd, session.SlotGen} {
				code := sess.Code(slot)
				if code == nil {
					continue
				}
				fmt.Fprintf(out, "%s: %s (%s), %d bytes\n",
					slot, code.Lang, code.Std, len(code.Content))
			}
			fmt.Fprintf(out, "test cases: %d\n", len(sess.TestCases))
			return nil
		},
	}
}

func newSessionCreateCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a session with default code templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			sess := &session.Session{Title: args[0], Description: description}
			sess.FillDefaults()
			created, err := a.client.CreateSession(cmd.Context(), sess)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(),
				styles.Success.Render("Created session "+created.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Problem statement")
	return cmd
}

func newSessionDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if err := a.client.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted "+args[0])
			return nil
		},
	}
}
