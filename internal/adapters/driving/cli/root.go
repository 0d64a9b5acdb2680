// Package cli implements the command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/sitesearch-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sitesearch-cli/internal/app"
	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/logger"
)

// version is set from main at startup.
var version = "dev"

var (
	verbose    bool
	configPath string
	corpusPath string
	corpusURL  string

	runtime *app.Runtime
)

var rootCmd = &cobra.Command{
	Use:   "sitesearch",
	Short: "Search and ask questions about your site",
	Long: `sitesearch indexes a static site's search corpus in an embedded
in-memory database and provides keyword, semantic, and hybrid search
over it, plus an optional assistant that answers questions grounded in
the site's articles via a local Ollama model.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.sitesearch/config.toml)")
	rootCmd.PersistentFlags().StringVar(&corpusPath, "corpus", "", "local corpus JSON file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&corpusURL, "corpus-url", "", "remote corpus URL (overrides config)")
}

// Execute runs the root command.
func Execute(v string) error {
	version = v
	defer func() {
		if runtime != nil {
			runtime.Close() //nolint:errcheck
		}
	}()
	return rootCmd.Execute()
}

// ensureRuntime builds the shared runtime on first use. Flags override
// the config file's corpus selection.
func ensureRuntime() (*app.Runtime, error) {
	if runtime != nil {
		return runtime, nil
	}

	cfg, err := configfile.Load(configPath)
	if err != nil {
		return nil, err
	}
	if corpusPath != "" {
		cfg.Corpus.Path = corpusPath
		cfg.Corpus.URL = ""
	}
	if corpusURL != "" && cfg.Corpus.Path == "" {
		cfg.Corpus.URL = corpusURL
	}

	runtime, err = app.New(cfg)
	if err != nil {
		return nil, err
	}
	return runtime, nil
}

// waitReady starts initialization and blocks until the index is loaded
// or the run fails. Progress is surfaced through the verbose logger.
func waitReady(ctx context.Context, rt *app.Runtime) error {
	done := make(chan struct{})
	failed := make(chan string, 1)

	removeCompletion := rt.AddCompletionListener(func() {
		close(done)
	})
	defer removeCompletion()

	id := rt.RegisterProgressListener("cli", func(p domain.Progress) {
		if p.Total > 0 {
			logger.Debug("Loading corpus: %d/%d", p.Loaded, p.Total)
		}
		if p.Err != "" {
			select {
			case failed <- p.Err:
			default:
			}
		}
	})
	defer rt.UnregisterProgressListener(id)

	rt.Start(ctx)

	select {
	case <-done:
		return nil
	case msg := <-failed:
		return fmt.Errorf("initialization failed: %s", msg)
	case <-ctx.Done():
		return ctx.Err()
	}
}
