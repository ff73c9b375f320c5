package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgallion1/docchat/internal/answer"
	"github.com/dgallion1/docchat/internal/render"
	"github.com/dgallion1/docchat/internal/store"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List chat sessions",
	Long: `List your chat sessions, most recently active first.

Examples:
  docchat sessions
  docchat sessions --limit 5
  docchat sessions delete <id>`,
	Args: cobra.NoArgs,
	RunE: runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show the messages of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var sessionsLimit int

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum number of sessions to list")
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	c, ctx, s, err := apiClient(cmd.Context())
	if err != nil {
		return err
	}
	sessions, err := c.Sessions(ctx, s.User, sessionsLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMSGS\tUPDATED")
	for _, sess := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", sess.ID, sess.Title, sess.MessageCount, sess.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	c, ctx, s, err := apiClient(cmd.Context())
	if err != nil {
		return err
	}
	if err := c.DeleteSession(ctx, s.User, args[0]); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	c, ctx, s, err := apiClient(cmd.Context())
	if err != nil {
		return err
	}
	sess, msgs, err := c.History(ctx, s.User, args[0])
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	out := cmd.OutOrStdout()
	r := lipgloss.NewRenderer(out)
	t := render.NewTerminal(r)
	title := r.NewStyle().Bold(true)
	you := r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)

	fmt.Fprintln(out, title.Render(sess.Title))
	for _, m := range msgs {
		fmt.Fprintln(out)
		if m.Role == store.RoleUser {
			fmt.Fprintln(out, you.Render("You:")+" "+m.Content)
			continue
		}
		doc := answer.Parse(m.Content)
		fmt.Fprintln(out, t.Render(doc, m.Sources, render.Options{Policy: s.Policy, ShowSources: true}))
	}
	return nil
}
