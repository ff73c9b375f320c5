package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "List indexed documents",
	Args:    cobra.NoArgs,
	RunE:    runDocumentsList,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Remove a document from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

func init() {
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	c, ctx, s, err := apiClient(cmd.Context())
	if err != nil {
		return err
	}
	docs, err := c.Documents(ctx, s.User)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, "No documents found.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tCHUNKS\tADDED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.ID, d.Filename, d.ChunkCount, d.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	c, ctx, s, err := apiClient(cmd.Context())
	if err != nil {
		return err
	}
	n, err := c.DeleteDocument(ctx, s.User, args[0])
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d chunks)\n", args[0], n)
	return nil
}
