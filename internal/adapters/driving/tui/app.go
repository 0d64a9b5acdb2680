// Package tui implements the interactive terminal search interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driving"
)

// listenerID identifies the TUI's progress registration so a restart
// replaces it rather than stacking listeners.
const listenerID = "tui"

// maxVisibleResults bounds the rendered list independent of terminal
// height bookkeeping.
const maxVisibleResults = 10

// styles for the single search view.
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	scoreStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
)

// progressMsg carries an initialization snapshot into the update loop.
type progressMsg domain.Progress

// resultsMsg carries completed search results.
type resultsMsg struct {
	query   string
	results []domain.SearchResult
	err     error
}

// App is the bubbletea model for the search interface.
type App struct {
	search driving.SearchService
	init   driving.Initializer
	ctx    context.Context

	input    textinput.Model
	spin     spinner.Model
	progress domain.Progress
	ready    bool

	query    string
	results  []domain.SearchResult
	selected int
	err      error

	progressCh chan domain.Progress
	width      int
}

// NewApp creates the TUI over the given services. Initialization is
// kicked off on startup and its progress rendered until the index is
// ready.
func NewApp(ctx context.Context, search driving.SearchService, init driving.Initializer) *App {
	input := textinput.New()
	input.Placeholder = "Search the site..."
	input.Focus()
	input.CharLimit = 256

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = titleStyle

	return &App{
		search:     search,
		init:       init,
		ctx:        ctx,
		input:      input,
		spin:       spin,
		progressCh: make(chan domain.Progress, 16),
		width:      80,
	}
}

// Init registers for progress and starts initialization.
func (a *App) Init() tea.Cmd {
	a.init.RegisterProgressListener(listenerID, func(p domain.Progress) {
		select {
		case a.progressCh <- p:
		default:
		}
	})
	a.init.Start(a.ctx)

	return tea.Batch(textinput.Blink, a.spin.Tick, a.nextProgress())
}

// nextProgress waits for the next initialization snapshot.
func (a *App) nextProgress() tea.Cmd {
	return func() tea.Msg {
		return progressMsg(<-a.progressCh)
	}
}

// runSearch performs a search asynchronously.
func (a *App) runSearch(query string) tea.Cmd {
	return func() tea.Msg {
		results, err := a.search.Search(a.ctx, query, domain.SearchOptions{})
		return resultsMsg{query: query, results: results, err: err}
	}
}

// Update handles messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case progressMsg:
		a.progress = domain.Progress(msg)
		a.ready = a.init.Status().IsInitialized
		return a, a.nextProgress()

	case resultsMsg:
		// Ignore stale responses from superseded queries.
		if msg.query != a.query {
			return a, nil
		}
		a.err = msg.err
		a.results = msg.results
		a.selected = 0
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// handleKey processes keyboard input.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		a.init.UnregisterProgressListener(listenerID)
		return a, tea.Quit

	case tea.KeyEnter:
		query := strings.TrimSpace(a.input.Value())
		if query == "" {
			return a, nil
		}
		a.query = query
		a.err = nil
		return a, a.runSearch(query)

	case tea.KeyDown:
		if a.selected < len(a.results)-1 {
			a.selected++
		}
		return a, nil

	case tea.KeyUp:
		if a.selected > 0 {
			a.selected--
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// View renders the interface.
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("sitesearch"))
	b.WriteString("\n\n")
	b.WriteString(a.input.View())
	b.WriteString("\n\n")

	if !a.ready {
		b.WriteString(a.spin.View())
		b.WriteString(" ")
		b.WriteString(a.statusLine())
		b.WriteString("\n")
		return b.String()
	}

	if a.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Search failed: %v", a.err)))
		b.WriteString("\n")
		return b.String()
	}

	if a.query != "" && len(a.results) == 0 {
		b.WriteString(mutedStyle.Render("No results found."))
		b.WriteString("\n")
		return b.String()
	}

	visible := a.results
	if len(visible) > maxVisibleResults {
		visible = visible[:maxVisibleResults]
	}

	for i, r := range visible {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		line := fmt.Sprintf("%s %s", title, scoreStyle.Render(fmt.Sprintf("(%.2f)", r.Score)))
		if i == a.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("    " + r.Path))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("enter: search • ↑/↓: navigate • esc: quit"))
	b.WriteString("\n")
	return b.String()
}

// statusLine formats the current initialization state.
func (a *App) statusLine() string {
	if a.progress.Err != "" {
		return errorStyle.Render("Initialization failed: " + a.progress.Err)
	}
	if a.progress.Total > 0 {
		return fmt.Sprintf("%s (%d/%d)", a.progress.Status, a.progress.Loaded, a.progress.Total)
	}
	if a.progress.Status != "" {
		return a.progress.Status
	}
	return "starting"
}
