package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/pathrace/internal/storage"
)

// Results layout constants
const (
	minWidthForSidebar = 80 // Minimum width to show the standings sidebar
	sidebarWidth       = 30 // Width of standings sidebar
)

// ResultsKeyMap defines the key bindings for the results browser.
type ResultsKeyMap struct {
	Up   key.Binding
	Down key.Binding
	Help key.Binding
	Quit key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k ResultsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k ResultsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Help, k.Quit},
	}
}

// DefaultResultsKeyMap returns default key bindings.
func DefaultResultsKeyMap() ResultsKeyMap {
	return ResultsKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ResultsModel is the Bubble Tea model for browsing finished games.
type ResultsModel struct {
	games       []storage.GameRecord
	table       table.Model
	help        help.Model
	keys        ResultsKeyMap
	width       int
	height      int
	quitting    bool
	showSidebar bool // Whether to show the standings sidebar
}

// NewResultsModel creates a results browser over games, newest first.
func NewResultsModel(games []storage.GameRecord, width, height int) ResultsModel {
	h := help.New()
	h.ShowAll = false

	m := ResultsModel{
		games:       games,
		keys:        DefaultResultsKeyMap(),
		help:        h,
		width:       width,
		height:      height,
		showSidebar: width >= minWidthForSidebar,
	}
	m.table = m.createTable()
	m.updateTableRows()
	return m
}

// createTable creates a new table with appropriate columns.
func (m *ResultsModel) createTable() table.Model {
	columns := []table.Column{
		{Title: "Date", Width: 13},
		{Title: "Mode", Width: 6},
		{Title: "Size", Width: 7},
		{Title: "Turns", Width: 5},
		{Title: "Winner", Width: 14},
		{Title: "End", Width: 9},
	}

	height := m.height - 8 // Leave room for header, help, and margins
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	// Table styles
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

// updateTableRows fills the table from the loaded games.
func (m *ResultsModel) updateTableRows() {
	rows := make([]table.Row, len(m.games))
	for i, g := range m.games {
		winner := g.Winner
		if winner == "" {
			winner = "-"
		}
		rows[i] = table.Row{
			g.CreatedAt.Format("Jan 02 15:04"),
			g.Mode,
			fmt.Sprintf("%dx%d", g.Width, g.Height),
			fmt.Sprintf("%d", g.Turns),
			winner,
			g.EndReason,
		}
	}
	m.table.SetRows(rows)
	m.table.GotoTop()
}

// Init initializes the results model.
func (m ResultsModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the results browser.
func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.showSidebar = m.width >= minWidthForSidebar
		m.table = m.createTable()
		m.updateTableRows()
		m.help.Width = msg.Width
		return m, nil
	}

	// Pass other messages to table
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// Selected returns the highlighted game, if any.
func (m ResultsModel) Selected() (storage.GameRecord, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.games) {
		return storage.GameRecord{}, false
	}
	return m.games[i], true
}

// View renders the results browser.
func (m ResultsModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.MarginBottom(1).Render(centerText("RECENT GAMES", m.width)))
	b.WriteString("\n\n")

	tableRendered := panelStyle.Render(m.renderTableContent())
	if m.showSidebar && len(m.games) > 0 {
		sidebar := panelStyle.Width(sidebarWidth).Render(m.renderStandings())
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tableRendered, "  ", sidebar))
	} else {
		b.WriteString(tableRendered)
	}

	// Help bar
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderTableContent renders the table or empty message.
func (m ResultsModel) renderTableContent() string {
	if len(m.games) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true).
			Padding(2, 4)
		return emptyStyle.Render("No games recorded yet.\nHost one with 'pathrace serve'!")
	}
	return m.table.View()
}

// renderStandings lists the highlighted game's ranking.
func (m ResultsModel) renderStandings() string {
	g, ok := m.Selected()
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Game %.8s\n", g.GameID))
	b.WriteString(strings.Repeat("-", sidebarWidth-4))
	b.WriteString("\n")
	for _, st := range g.Standings {
		line := fmt.Sprintf("%d. %-12s %6s", st.Rank, st.Name, formatScore(st.Score))
		if st.Forfeited {
			line += " ff"
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RunResults runs the results browser.
func RunResults(games []storage.GameRecord, width, height int) error {
	p := tea.NewProgram(
		NewResultsModel(games, width, height),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
