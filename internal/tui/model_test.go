package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/browserkube-console/internal/commands"
	"github.com/shehryarbajwa/browserkube-console/internal/console"
	"github.com/shehryarbajwa/browserkube-console/internal/details"
	"github.com/shehryarbajwa/browserkube-console/internal/events"
	"github.com/shehryarbajwa/browserkube-console/internal/filter"
	"github.com/shehryarbajwa/browserkube-console/internal/stream"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

type fakeBackend struct {
	mu         sync.Mutex
	rows       []models.Row
	active     details.View
	chips      *filter.Chips
	search     string
	selected   []string
	deleted    []string
	nearBottom int
	nextErr    error
	nextCalls  int
	toasts     []console.Toast
	changed    chan struct{}
}

func newFake() *fakeBackend {
	return &fakeBackend{
		rows: []models.Row{
			models.ActiveRow{S: models.Session{ID: "a", Name: "checkout", State: models.StateRunning, Browser: "chrome", BrowserVersion: "116", Manual: true, CreatedAt: 1_000}},
			models.TerminatedRow{S: models.Session{ID: "z", Name: "nightly", State: models.StateTerminated, Browser: "firefox", BrowserVersion: "118"}},
		},
		chips:   filter.NewChips(),
		changed: make(chan struct{}, 1),
	}
}

func (f *fakeBackend) Rows() []models.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.search == "" {
		return f.rows
	}
	return filter.Search(f.search, f.rows)
}

func (f *fakeBackend) Status() models.SessionStatus {
	return models.SessionStatus{QuotesLimit: 4, Stats: models.SessionStats{Running: 1}}
}

func (f *fakeBackend) Connection() events.Status { return events.StatusConnected }
func (f *fakeBackend) Chips() *filter.Chips { return f.chips }

func (f *fakeBackend) SetSearch(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.search = query
}

func (f *fakeBackend) Active() details.View { return f.active }
func (f *fakeBackend) ActiveID() string { return f.active.ID }

func (f *fakeBackend) Select(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, id)
	for _, r := range f.rows {
		if r.Session().ID == id {
			f.active = details.View{ID: id, Row: r}
		}
	}
	return nil
}

func (f *fakeBackend) Deselect() { f.active = details.View{} }

func (f *fakeBackend) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) NextCommands(context.Context) error {
	f.nextCalls++
	return f.nextErr
}

func (f *fakeBackend) NearBottom() { f.nearBottom++ }
func (f *fakeBackend) LogLines() []string { return []string{"booting chrome", "ready"} }
func (f *fakeBackend) StreamStatus() (stream.State, stream.State) {
	return stream.StateOpen, stream.StateRetrying
}
func (f *fakeBackend) Toasts() []console.Toast { return f.toasts }
func (f *fakeBackend) Dismiss(string) { f.toasts = nil }
func (f *fakeBackend) Changed() <-chan struct{} { return f.changed }

func keyRune(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

// step feeds msg through Update and drops the returned command
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// act feeds msg through Update, runs the console call it scheduled and applies the result
func act(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	require.NotNil(t, cmd)
	done, ok := cmd().(actionDoneMsg)
	require.True(t, ok)
	next, _ = m.Update(done)
	return next.(Model)
}

func newTestModel(f *fakeBackend) Model {
	m := NewModel(context.Background(), f, 10*time.Minute)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	return next.(Model)
}

func TestViewListsSessions(t *testing.T) {
	m := newTestModel(newFake())

	out := m.View()
	assert.Contains(t, out, "checkout")
	assert.Contains(t, out, "nightly")
	assert.Contains(t, out, "sessions: 1/4")
	assert.Contains(t, out, "Select a session")
}

func TestEnterSelectsCursorRow(t *testing.T) {
	f := newFake()
	m := newTestModel(f)

	m = act(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"a"}, f.selected)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = act(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"a", "z"}, f.selected)
	assert.Contains(t, m.View(), "Commands (0)")
}

func TestDeleteUsesCursorRow(t *testing.T) {
	f := newFake()
	m := newTestModel(f)

	act(t, m, keyRune('d'))
	assert.Equal(t, []string{"a"}, f.deleted)
}

func TestLiveDetailShowsCountdownAndStreams(t *testing.T) {
	f := newFake()
	m := newTestModel(f)
	m = act(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	out := m.renderDetail(time.UnixMilli(1_000).Add(3 * time.Minute))
	assert.Contains(t, out, "00:07:00")
	assert.Contains(t, out, "retrying")
	assert.Contains(t, out, "ready")
}

func TestArchivedDetailListsCommands(t *testing.T) {
	f := newFake()
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	f.active = details.View{
		ID:      "z",
		Row:     f.rows[1],
		Details: &models.SessionDetails{ID: "z", VideoRefAddr: "/files/z/video.mp4"},
		Commands: commands.Snapshot{
			SessionID: "z",
			Exhausted: true,
			Commands: []models.Command{
				{Method: "POST", Command: "/session", Timestamp: start, StatusCode: 200},
				{Method: "POST", Command: "/session/z/url", Timestamp: start.Add(90 * time.Second), StatusCode: 200},
			},
		},
	}
	m := newTestModel(f)

	out := m.renderDetail(time.Now())
	assert.Contains(t, out, "Commands (2)")
	assert.Contains(t, out, "00:01:30")
	assert.Contains(t, out, "/files/z/video.mp4")
	assert.Contains(t, out, "End of command log")
}

func TestArchivedDetailShowsLogTail(t *testing.T) {
	f := newFake()
	f.active = details.View{
		ID:      "z",
		Row:     f.rows[1],
		Details: &models.SessionDetails{ID: "z", LogsRefAddr: "/files/z/session.log"},
		Logs:    []byte("starting chrome\r\nnavigated to /checkout\n"),
	}
	m := newTestModel(f)

	out := m.renderDetail(time.Now())
	assert.Contains(t, out, "Session log")
	assert.Contains(t, out, "starting chrome\n")
	assert.Contains(t, out, "navigated to /checkout")
	assert.NotContains(t, out, "bytes")
	assert.Contains(t, m.detail.View(), "starting chrome")
}

func TestScrollingDetailToBottomRequestsMore(t *testing.T) {
	f := newFake()
	m := newTestModel(f)

	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, paneDetail, m.focus)
	step(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, f.nearBottom)
}

func TestMoreIgnoresExhausted(t *testing.T) {
	f := newFake()
	f.nextErr = commands.ErrExhausted
	m := newTestModel(f)

	m = act(t, m, keyRune('n'))
	assert.Equal(t, 1, f.nextCalls)
	assert.NoError(t, m.lastErr)
}

func TestSearchNarrowsRows(t *testing.T) {
	f := newFake()
	m := newTestModel(f)

	m = step(t, m, keyRune('/'))
	require.True(t, m.searching)
	for _, r := range "night" {
		m = step(t, m, keyRune(r))
	}
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	assert.False(t, m.searching)
	assert.Equal(t, []string{"z"}, m.ids)
}

func TestModeChipsShowInHeader(t *testing.T) {
	f := newFake()
	m := newTestModel(f)

	m = step(t, m, keyRune('m'))
	assert.Equal(t, filter.Filter{filter.Manual: {"Manual"}}, f.chips.Filter())
	assert.Contains(t, m.View(), "[Manual]")

	m = step(t, m, keyRune('c'))
	assert.Empty(t, f.chips.Filter())
	assert.False(t, strings.Contains(m.View(), "[Manual]"))
}

func TestChangedMessageRefreshesRows(t *testing.T) {
	f := newFake()
	m := newTestModel(f)

	f.mu.Lock()
	f.rows = f.rows[:1]
	f.mu.Unlock()

	next, cmd := m.Update(changedMsg{})
	m = next.(Model)
	assert.Equal(t, []string{"a"}, m.ids)
	assert.NotNil(t, cmd)
}

func TestToastsRenderAndDismiss(t *testing.T) {
	f := newFake()
	f.toasts = []console.Toast{{ID: "1", Level: console.LevelError, Message: "[WDHUBSESSION:500] : no quota"}}
	m := newTestModel(f)

	assert.Contains(t, m.View(), "no quota")
	m = step(t, m, keyRune('x'))
	assert.NotContains(t, m.View(), "no quota")
}
