package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
)

var (
	searchLimit  int
	searchJSON   bool
	searchHybrid bool
)

// fallbackWidth applies when stdout is not a terminal.
const fallbackWidth = 100

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the site's articles",
	Long: `Searches the indexed site corpus.
By default results are ranked by full-text relevance with title matches
weighted higher. With --hybrid, keyword and semantic scores are combined
(requires an Ollama embedding model).`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchHybrid, "hybrid", false, "combine keyword and semantic search")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	rt, err := ensureRuntime()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := waitReady(ctx, rt); err != nil {
		return err
	}

	opts := domain.SearchOptions{
		Limit:  searchLimit,
		Hybrid: searchHybrid,
	}

	results, err := rt.Search(ctx, query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}

	return outputSearchTable(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	width := terminalWidth()

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		title := results[i].Title
		if title == "" {
			title = results[i].ID
		}

		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, results[i].Score)
		if results[i].Date != nil {
			cmd.Printf("      %s\n", *results[i].Date)
		}
		if results[i].Excerpt != "" {
			cmd.Printf("      %s\n", clipLine(results[i].Excerpt, width-6))
		}
		cmd.Printf("      %s\n", results[i].Path)
		cmd.Println()
	}

	return nil
}

// terminalWidth returns the stdout width, or a fallback when stdout is
// redirected.
func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackWidth
	}
	return width
}

// clipLine collapses whitespace and truncates to width runes.
func clipLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 3 {
		width = 3
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
