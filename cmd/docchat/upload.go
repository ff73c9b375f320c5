package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/docchat/internal/client"
	"github.com/dgallion1/docchat/internal/ingest"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload documents for indexing",
	Long: `Upload one or more files and wait until each is indexed.
Supported: .txt .md .markdown .csv .html .htm .pdf .docx

Examples:
  docchat upload handbook.pdf
  docchat upload --title "Runbook" runbook.md
  docchat upload --no-wait *.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

var (
	uploadTitle   string
	uploadNoWait  bool
	uploadTimeout time.Duration
	uploadPoll    time.Duration
)

func init() {
	uploadCmd.Flags().StringVar(&uploadTitle, "title", "", "Document title (single file only)")
	uploadCmd.Flags().BoolVar(&uploadNoWait, "no-wait", false, "Return once the upload is queued")
	uploadCmd.Flags().DurationVar(&uploadTimeout, "timeout", 5*time.Minute, "How long to wait for indexing")
	uploadCmd.Flags().DurationVar(&uploadPoll, "poll", 500*time.Millisecond, "Status poll interval")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if uploadTitle != "" && len(args) > 1 {
		return fmt.Errorf("--title applies to a single file")
	}
	c, ctx, s, err := apiClient(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var failed int
	for _, path := range args {
		acc, err := uploadFile(ctx, c, s.User, path)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed++
			continue
		}
		if uploadNoWait {
			fmt.Fprintf(out, "%s: queued as job %s\n", path, acc.JobID)
			continue
		}

		waitCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
		snap, err := c.WaitJob(waitCtx, acc.JobID, uploadPoll)
		cancel()
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed++
			continue
		}
		switch snap.Status {
		case ingest.StatusCompleted:
			fmt.Fprintf(out, "%s: indexed %d chunks as %s\n", path, snap.Progress.ChunksIndexed, snap.DocID)
		case ingest.StatusDupSkipped:
			fmt.Fprintf(out, "%s: already indexed as %s\n", path, snap.ExistingDocID)
		default:
			fmt.Fprintf(out, "%s: %s during %s: %v\n", path, snap.Status, snap.Phase, snap.Progress.Errors)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(args))
	}
	return nil
}

func uploadFile(ctx context.Context, c *client.Client, user, path string) (*client.Accepted, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.Upload(ctx, user, filepath.Base(path), uploadTitle, f)
}
