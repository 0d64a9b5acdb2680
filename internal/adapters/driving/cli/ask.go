package cli

import (
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the site's articles",
	Long: `Retrieves the articles most relevant to the question and asks a
local Ollama model to compose an answer grounded in them, streaming the
response as it is generated. The answer ends with a list of the source
articles.

Requires an Ollama chat model and embedding model, see the ollama
section of the config file.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	rt, err := ensureRuntime()
	if err != nil {
		return err
	}

	for chunk := range rt.Ask(cmd.Context(), args[0]) {
		cmd.Print(chunk)
	}
	cmd.Println()
	return nil
}
