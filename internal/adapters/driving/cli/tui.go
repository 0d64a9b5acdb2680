package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sitesearch-cli/internal/adapters/driving/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal search interface.

The index loads in the background with visible progress; searching is
available as soon as it is ready.

Controls:
  Enter    - Search
  ↑/↓      - Navigate results
  Esc      - Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	rt, err := ensureRuntime()
	if err != nil {
		return err
	}

	// Reload the index on corpus changes while the TUI is open.
	if watcher, err := rt.Watcher(); err == nil && watcher != nil {
		go watcher.Run(cmd.Context()) //nolint:errcheck
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "corpus watcher unavailable: %v\n", err)
	}

	app := tui.NewApp(cmd.Context(), rt, rt)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
