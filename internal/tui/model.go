// Package tui is the terminal front end of the console
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/shehryarbajwa/browserkube-console/internal/commands"
	"github.com/shehryarbajwa/browserkube-console/internal/console"
	"github.com/shehryarbajwa/browserkube-console/internal/details"
	"github.com/shehryarbajwa/browserkube-console/internal/events"
	"github.com/shehryarbajwa/browserkube-console/internal/filter"
	"github.com/shehryarbajwa/browserkube-console/internal/stream"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// Backend is the console state the terminal view drives
type Backend interface {
	Rows() []models.Row
	Status() models.SessionStatus
	Connection() events.Status
	Chips() *filter.Chips
	SetSearch(query string)

	Active() details.View
	ActiveID() string
	Select(ctx context.Context, id string) error
	Deselect()
	Delete(ctx context.Context, id string) error
	NextCommands(ctx context.Context) error
	NearBottom()
	LogLines() []string
	StreamStatus() (vnc, logs stream.State)

	Toasts() []console.Toast
	Dismiss(id string)
	Changed() <-chan struct{}
}

// pane that receives navigation keys
type pane int

const (
	paneList pane = iota
	paneDetail
)

// Messages
type changedMsg struct{}

type tickMsg time.Time

type actionDoneMsg struct {
	err error
}

// Model is the root Bubble Tea model
type Model struct {
	ctx     context.Context
	backend Backend
	keys    KeyMap

	// Terminal dimensions
	width  int
	height int

	focus     pane
	searching bool
	lastErr   error

	table  table.Model
	detail viewport.Model
	search textinput.Model

	// ids parallel to the table rows
	ids []string

	sessionDuration time.Duration
	now             func() time.Time
}

// NewModel creates the root model. sessionDuration drives the countdown of manual sessions.
func NewModel(ctx context.Context, backend Backend, sessionDuration time.Duration) Model {
	t := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(ColorMagenta).Bold(true)
	styles.Selected = styles.Selected.Foreground(ColorBlue).Bold(true)
	t.SetStyles(styles)

	search := textinput.New()
	search.Placeholder = "session name"
	search.Prompt = "/ "
	search.CharLimit = 64

	m := Model{
		ctx:             ctx,
		backend:         backend,
		keys:            DefaultKeyMap(),
		table:           t,
		detail:          viewport.New(80, 10),
		search:          search,
		sessionDuration: sessionDuration,
		now:             time.Now,
	}
	m.refresh()
	return m
}

// Init starts listening for console changes and the countdown clock
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForChange(m.backend.Changed()), tick())
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles incoming messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refresh()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.backend.Changed())

	case tickMsg:
		// countdown of the active session
		m.refreshDetail()
		return m, tick()

	case actionDoneMsg:
		m.lastErr = msg.err
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.backend.SetSearch(m.search.Value())
		m.refresh()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.backend.SetSearch("")
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Focus):
		if m.focus == paneList {
			m.focus = paneDetail
			m.table.Blur()
		} else {
			m.focus = paneList
			m.table.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		return m, m.search.Focus()

	case key.Matches(msg, m.keys.Select):
		id := m.cursorID()
		if id == "" {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) error {
			return m.backend.Select(ctx, id)
		})

	case key.Matches(msg, m.keys.Deselect):
		m.backend.Deselect()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		id := m.cursorID()
		if id == "" {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) error {
			return m.backend.Delete(ctx, id)
		})

	case key.Matches(msg, m.keys.More):
		return m, m.run(func(ctx context.Context) error {
			err := m.backend.NextCommands(ctx)
			if errors.Is(err, commands.ErrExhausted) || errors.Is(err, commands.ErrBusy) {
				return nil
			}
			return err
		})

	case key.Matches(msg, m.keys.Auto):
		m.backend.Chips().Enable(filter.Auto)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Manual):
		m.backend.Chips().Enable(filter.Manual)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.ClearFilter):
		m.backend.Chips().ClearAll()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if toasts := m.backend.Toasts(); len(toasts) > 0 {
			m.backend.Dismiss(toasts[len(toasts)-1].ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == paneDetail {
		m.detail, cmd = m.detail.Update(msg)
		if m.detail.AtBottom() {
			m.backend.NearBottom()
		}
		return m, cmd
	}
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// run executes a blocking console call off the update loop
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{err: fn(ctx)}
	}
}

func (m Model) cursorID() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.ids) {
		return ""
	}
	return m.ids[i]
}

// refresh rebuilds the session table and the detail pane from the console state
func (m *Model) refresh() {
	rows := m.backend.Rows()
	m.ids = make([]string, 0, len(rows))
	tableRows := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		s := row.Session()
		m.ids = append(m.ids, s.ID)
		tableRows = append(tableRows, sessionRow(row))
	}
	m.table.SetRows(tableRows)
	if m.table.Cursor() >= len(tableRows) && len(tableRows) > 0 {
		m.table.SetCursor(len(tableRows) - 1)
	}
	m.refreshDetail()
}

func (m *Model) refreshDetail() {
	m.detail.SetContent(m.renderDetail(m.now()))
}

func (m *Model) resize() {
	listWidth := m.width/2 - 4
	if listWidth < 20 {
		listWidth = 20
	}
	bodyHeight := m.height - 8
	if bodyHeight < 5 {
		bodyHeight = 5
	}
	m.table.SetColumns(columns(listWidth))
	m.table.SetWidth(listWidth)
	m.table.SetHeight(bodyHeight)
	m.detail.Width = m.width - listWidth - 8
	m.detail.Height = bodyHeight
}
