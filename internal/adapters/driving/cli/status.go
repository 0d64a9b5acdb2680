package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index and model status",
	Long: `Loads the corpus and reports what the current configuration
provides: index state, semantic search availability, and whether the
assistant's model is ready.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	rt, err := ensureRuntime()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if err := waitReady(ctx, rt); err != nil {
		cmd.Printf("Index:     failed (%v)\n", err)
	} else {
		cmd.Println("Index:     ready")
	}

	if rt.EmbedderConfigured() {
		cmd.Println("Semantic:  enabled")
	} else {
		cmd.Println("Semantic:  disabled (no embedding model configured)")
	}

	switch rt.ModelState(ctx) {
	case domain.ModelReady:
		cmd.Println("Assistant: ready")
	case domain.ModelNeedsDownload:
		cmd.Println("Assistant: model needs download (ollama pull)")
	default:
		cmd.Println("Assistant: unavailable")
	}

	return nil
}
