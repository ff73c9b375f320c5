package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgallion1/docchat/internal/answer"
	"github.com/dgallion1/docchat/internal/render"
	"github.com/dgallion1/docchat/internal/source"
	"github.com/spf13/cobra"
)

var formatCmd = &cobra.Command{
	Use:   "format [file]",
	Short: "Format reply text locally",
	Long: `Parse reply text into blocks and print it. Reads stdin when no file
is given or the file is "-". Runs without a server.

Examples:
  docchat format reply.txt
  docchat format -o json < reply.txt
  docchat format -o html --sources sources.json reply.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFormat,
}

var (
	formatOutput      string
	formatSourcesFile string
	formatShowSources bool
)

func init() {
	formatCmd.Flags().StringVarP(&formatOutput, "output", "o", "terminal", "Output format: terminal, json, or html")
	formatCmd.Flags().StringVar(&formatSourcesFile, "sources", "", "JSON file with the source list citations refer to")
	formatCmd.Flags().BoolVar(&formatShowSources, "show-sources", false, "Append the cited sources")
	rootCmd.AddCommand(formatCmd)
}

func runFormat(cmd *cobra.Command, args []string) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}

	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	var sources source.Set
	if formatSourcesFile != "" {
		data, err := os.ReadFile(formatSourcesFile)
		if err != nil {
			return fmt.Errorf("read sources: %w", err)
		}
		if err := json.Unmarshal(data, &sources); err != nil {
			return fmt.Errorf("parse sources: %w", err)
		}
	}

	doc := answer.Parse(text)
	opts := render.Options{Policy: s.Policy, ShowSources: formatShowSources}
	out := cmd.OutOrStdout()

	switch formatOutput {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"document":  doc,
			"citations": doc.Citations(),
		})
	case "html":
		_, err := fmt.Fprintln(out, render.HTML(doc, sources, opts))
		return err
	case "terminal":
		t := render.NewTerminal(lipgloss.NewRenderer(out))
		_, err := fmt.Fprintln(out, t.Render(doc, sources, opts))
		return err
	default:
		return fmt.Errorf("unknown output format %q (want terminal, json, or html)", formatOutput)
	}
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}
