package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgallion1/docchat/internal/answer"
	"github.com/dgallion1/docchat/internal/render"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask a question about your documents",
	Long: `Ask a question. Without --session a new session is started and its
ID is printed so follow-ups can continue it.

Examples:
  docchat ask "what does the retention policy say?"
  docchat ask -s 3f2a... "does that apply to backups?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	askSession     string
	askHideSources bool
)

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "Continue an existing session")
	askCmd.Flags().BoolVar(&askHideSources, "no-sources", false, "Do not list cited sources")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	c, ctx, s, err := apiClient(cmd.Context())
	if err != nil {
		return err
	}

	res, err := c.Ask(ctx, s.User, askSession, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	out := cmd.OutOrStdout()
	t := render.NewTerminal(lipgloss.NewRenderer(out))
	doc := answer.Parse(res.Content)
	fmt.Fprintln(out, t.Render(doc, res.Sources, render.Options{Policy: s.Policy, ShowSources: !askHideSources}))

	errOut := cmd.ErrOrStderr()
	if len(res.Unresolved) > 0 {
		fmt.Fprintf(errOut, "warning: answer cites sources that were not retrieved: %v\n", res.Unresolved)
	}
	fmt.Fprintf(errOut, "session %s\n", res.Session.ID)
	return nil
}
