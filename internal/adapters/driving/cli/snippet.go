package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snippetCmd = &cobra.Command{
	Use:   "snippet [document-id] [query]",
	Short: "Show a highlighted excerpt from a document",
	Long: `Extracts a short excerpt from the document's content around the
first occurrence of the query, with every query term wrapped in <mark>
tags.`,
	Args: cobra.ExactArgs(2),
	RunE: runSnippet,
}

func init() {
	rootCmd.AddCommand(snippetCmd)
}

func runSnippet(cmd *cobra.Command, args []string) error {
	id, query := args[0], args[1]

	rt, err := ensureRuntime()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := waitReady(ctx, rt); err != nil {
		return err
	}

	snippet, ok := rt.Snippet(ctx, id, query)
	if !ok {
		return fmt.Errorf("document %q not found", id)
	}

	cmd.Println(snippet)
	return nil
}
