package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/pathrace/internal/client"
	"github.com/vovakirdan/pathrace/internal/core"
	"github.com/vovakirdan/pathrace/internal/multiplayer"
)

const (
	requestTimeout = 5 * time.Second
	countdownRate  = 4 // ticks per second
	chatLines      = 8
)

// Messages produced by commands.
type (
	joinedMsg struct {
		board *client.Board
		role  string
	}
	eventMsg    struct{ evt multiplayer.SessionEvent }
	closedMsg   struct{ err error }
	proposedMsg struct {
		turn int
		mv   multiplayer.Move
		err  error
	}
	errMsg struct{ err error }
)

// PlayModel is the Bubble Tea model for one player's game screen.
type PlayModel struct {
	client *client.Client
	name   string

	board  *client.Board
	role   string
	cursor core.Coord

	keys     PlayKeyMap
	help     help.Model
	input    textinput.Model
	chatting bool

	deadline time.Time
	now      time.Time
	status   string
	err      error

	width    int
	height   int
	quitting bool
}

// NewPlayModel creates a game screen that joins as name once started.
func NewPlayModel(c *client.Client, name string) PlayModel {
	in := textinput.New()
	in.Placeholder = "say something"
	in.CharLimit = 200
	in.Prompt = "> "

	h := help.New()
	h.ShowAll = false

	return PlayModel{
		client: c,
		name:   name,
		keys:   DefaultPlayKeyMap(),
		help:   h,
		input:  in,
		status: "joining...",
		now:    time.Now(),
	}
}

// Init joins the server.
func (m PlayModel) Init() tea.Cmd {
	return m.join()
}

func (m PlayModel) join() tea.Cmd {
	c, name := m.client, m.name
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		board, joined, err := client.Setup(ctx, c, name, false)
		if err != nil {
			return errMsg{err}
		}
		return joinedMsg{board: board, role: joined.Role}
	}
}

// waitForEvent returns a command that waits for the next server notification.
func (m PlayModel) waitForEvent() tea.Cmd {
	c := m.client
	return func() tea.Msg {
		evt, ok := <-c.Events()
		if !ok {
			return closedMsg{err: c.Err()}
		}
		return eventMsg{evt}
	}
}

func (m PlayModel) propose(mv multiplayer.Move) tea.Cmd {
	c, turn := m.client, m.board.Turn
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return proposedMsg{turn: turn, mv: mv, err: c.ProposeMove(ctx, mv)}
	}
}

func (m PlayModel) sendChat(text string) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := c.SendChat(ctx, text); err != nil {
			return errMsg{err}
		}
		return nil
	}
}

// Update handles messages.
func (m PlayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case joinedMsg:
		m.board = msg.board
		m.role = msg.role
		m.name = msg.board.Me.Name
		if m.role == "player" {
			m.status = "waiting for the game to start"
		} else {
			m.status = "the game is full, you can chat"
		}
		return m, m.waitForEvent()

	case eventMsg:
		return m.handleEvent(msg.evt)

	case proposedMsg:
		if msg.err != nil {
			m.status = "move refused: " + msg.err.Error()
			return m, nil
		}
		m.board.Proposed(msg.turn, msg.mv)
		m.status = "waiting for the other players"
		return m, nil

	case TickMsg:
		m.now = time.Time(msg)
		if m.countingDown() {
			return m, tickCmd(countdownRate)
		}
		return m, nil

	case closedMsg:
		m.err = msg.err
		if m.err == nil {
			m.err = errors.New("server closed the connection")
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		if m.board == nil {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.chatting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m PlayModel) handleEvent(evt multiplayer.SessionEvent) (tea.Model, tea.Cmd) {
	m.board.Apply(evt)
	next := m.waitForEvent()

	switch e := evt.(type) {
	case multiplayer.StartGameEvent:
		m.cursor = e.Start
		m.status = "your move"
		return m, tea.Batch(next, m.startCountdown())
	case multiplayer.StartNextTurnEvent:
		m.status = "your move"
		return m, tea.Batch(next, m.startCountdown())
	case multiplayer.UpdateCostsEvent:
		m.deadline = time.Time{}
		if m.board.Me.Finished {
			m.status = "goal reached, watching the others"
		} else {
			m.status = "out of the game"
		}
	case multiplayer.IllegalMoveEvent:
		m.status = "illegal move: " + e.Reason
	case multiplayer.WinEvent:
		m.status = "you won!"
		m.deadline = time.Time{}
	case multiplayer.GameOverEvent:
		m.status = "game over"
		m.deadline = time.Time{}
	}
	return m, next
}

func (m *PlayModel) startCountdown() tea.Cmd {
	window := time.Duration(float64(m.board.Game.TimeoutMillis)*1.5) * time.Millisecond
	m.now = time.Now()
	m.deadline = m.now.Add(window)
	return tickCmd(countdownRate)
}

func (m PlayModel) countingDown() bool {
	return !m.deadline.IsZero() && m.now.Before(m.deadline)
}

func (m PlayModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.chatting {
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.chatting = false
			m.input.Blur()
			m.input.Reset()
			return m, nil
		case key.Matches(msg, m.keys.Send):
			text := strings.TrimSpace(m.input.Value())
			m.chatting = false
			m.input.Blur()
			m.input.Reset()
			if text == "" {
				return m, nil
			}
			return m, m.sendChat(text)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.board == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Chat):
		m.chatting = true
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(0, -1)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(0, 1)
	case key.Matches(msg, m.keys.Left):
		m.moveCursor(-1, 0)
	case key.Matches(msg, m.keys.Right):
		m.moveCursor(1, 0)
	case key.Matches(msg, m.keys.Propose):
		return m.tryPropose(multiplayer.Move{Player: m.name, Target: m.cursor})
	case key.Matches(msg, m.keys.Pass):
		return m.tryPropose(multiplayer.NoOpMove(m.name))
	}
	return m, nil
}

func (m *PlayModel) moveCursor(dx, dy int) {
	next := m.cursor.Add(dx, dy)
	if m.board.Adj.Contains(next) {
		m.cursor = next
	}
}

func (m PlayModel) tryPropose(mv multiplayer.Move) (tea.Model, tea.Cmd) {
	if !m.board.CanMove() {
		return m, nil
	}
	prepared, err := m.board.Prepare(mv)
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.status = "sending move..."
	return m, m.propose(prepared)
}

// Err returns the error that ended the session, if any.
func (m PlayModel) Err() error {
	return m.err
}

// Board returns the local game state, nil before joining.
func (m PlayModel) Board() *client.Board {
	return m.board
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	winnerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// View renders the game screen.
func (m PlayModel) View() string {
	if m.quitting {
		return ""
	}
	if m.board == nil {
		if m.err != nil {
			return errorStyle.Render("join failed: "+m.err.Error()) + "\n"
		}
		return dimStyle.Render(m.status) + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("PATHRACE  %s %s", swatch(m.board.Me.Marker), m.name)))
	if m.board.Started {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  turn %d", m.board.Turn)))
	}
	if m.countingDown() {
		left := m.deadline.Sub(m.now).Round(100 * time.Millisecond)
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s left", left)))
	}
	b.WriteString("\n\n")

	grid := panelStyle.Render(RenderBoard(m.board, m.cursor, m.board.CanMove()))
	side := panelStyle.Render(m.renderSide())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, grid, " ", side))
	b.WriteString("\n")

	b.WriteString(m.status)
	if m.err != nil {
		b.WriteString("  " + errorStyle.Render(m.err.Error()))
	}
	b.WriteString("\n")
	if m.chatting {
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m PlayModel) renderSide() string {
	var b strings.Builder
	if m.board.Over {
		b.WriteString("Final standings\n")
		for i, st := range m.board.Standings {
			line := fmt.Sprintf("%d. %-12s %6s", i+1, st.Name, formatScore(st.Score))
			if st.Forfeited {
				line += " forfeit"
			}
			if i == 0 && st.Score != nil {
				line = winnerStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	} else {
		b.WriteString("Players\n")
		for _, p := range m.board.Players {
			b.WriteString(fmt.Sprintf("%s %s\n", swatch(p.Marker), p.Name))
		}
		if m.board.Started {
			b.WriteString(fmt.Sprintf("\ncursor %v\ncost   %d\n", m.cursor, m.board.Terrain.At(m.cursor).Weight()))
		}
	}

	b.WriteString("\nChat\n")
	chat := m.board.Chat
	if len(chat) > chatLines {
		chat = chat[len(chat)-chatLines:]
	}
	for _, line := range chat {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(line.Colour.Hex())).Render(line.Text))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RunPlay runs the game screen on the local terminal.
func RunPlay(c *client.Client, name string) error {
	p := tea.NewProgram(NewPlayModel(c, name), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(PlayModel); ok && m.Err() != nil && !m.quitting {
		return m.Err()
	}
	return nil
}
