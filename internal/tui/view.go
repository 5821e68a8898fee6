package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/shehryarbajwa/browserkube-console/internal/console"
	"github.com/shehryarbajwa/browserkube-console/internal/filter"
	"github.com/shehryarbajwa/browserkube-console/internal/format"
	"github.com/shehryarbajwa/browserkube-console/internal/stream"
	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

const (
	// maxVisibleToasts is how many notifications the footer stacks
	maxVisibleToasts = 3
	maxLogLines      = 200
)

func columns(width int) []table.Column {
	name := width - 12 - 14 - 10 - 8 - 10
	if name < 10 {
		name = 10
	}
	return []table.Column{
		{Title: "State", Width: 12},
		{Title: "Name", Width: name},
		{Title: "Browser", Width: 14},
		{Title: "Screen", Width: 10},
		{Title: "Mode", Width: 8},
		{Title: "Started", Width: 10},
	}
}

func sessionRow(row models.Row) table.Row {
	s := row.Session()
	started := ""
	if s.CreatedAt > 0 {
		started = s.Created().Format("15:04:05")
	}
	browser := strings.TrimSpace(format.Title(s.Browser) + " " + s.BrowserVersion)
	return table.Row{
		string(s.State),
		s.Name,
		browser,
		s.ScreenResolution,
		format.Mode(s),
		started,
	}
}

// View renders the console
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	list, detail := PaneStyle, PaneStyle
	if m.focus == paneList {
		list = FocusedPaneStyle
	} else {
		detail = FocusedPaneStyle
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		list.Render(m.table.View()),
		detail.Render(m.detail.View()),
	))
	b.WriteString("\n")

	if m.searching {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString(toastStyle(console.LevelError).Render(m.lastErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString(m.renderToasts())
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	status := m.backend.Status()
	header := HeaderStyle.Render("BrowserKube") +
		LabelStyle.Render(fmt.Sprintf("  events: %s  sessions: %d/%d",
			m.backend.Connection(), status.Stats.Running, status.QuotesLimit))
	if status.Stats.Queued > 0 {
		header += LabelStyle.Render(fmt.Sprintf("  queued: %d", status.Stats.Queued))
	}

	var chips []string
	for _, l := range m.backend.Chips().Labels() {
		text := l.Text
		switch l.Category {
		case filter.Chrome, filter.Firefox, filter.Edge:
			text = format.Title(string(l.Category)) + ": " + text
		}
		chips = append(chips, ChipStyle.Render("["+text+"]"))
	}
	if len(chips) > 0 {
		header += " " + strings.Join(chips, "")
	}
	return header
}

func (m Model) renderToasts() string {
	toasts := m.backend.Toasts()
	if len(toasts) > maxVisibleToasts {
		toasts = toasts[len(toasts)-maxVisibleToasts:]
	}
	var b strings.Builder
	for _, t := range toasts {
		b.WriteString(toastStyle(t.Level).Render(t.Message))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderHelp() string {
	var parts []string
	for _, k := range m.keys.ShortHelp() {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return HelpStyle.Render(strings.Join(parts, " • "))
}

func field(label, value string) string {
	if value == "" {
		value = "-"
	}
	return LabelStyle.Render(fmt.Sprintf("%-12s", label)) + ValueStyle.Render(value) + "\n"
}

// renderDetail is the content of the right pane for the active session
func (m Model) renderDetail(now time.Time) string {
	view := m.backend.Active()
	if view.Row == nil {
		return LabelStyle.Render("Select a session to see its details")
	}

	s := view.Row.Session()
	var b strings.Builder
	b.WriteString(field("Name", s.Name))
	b.WriteString(field("ID", s.ID))
	b.WriteString(LabelStyle.Render(fmt.Sprintf("%-12s", "State")) + stateStyle(s.State).Render(string(s.State)) + "\n")
	b.WriteString(field("Browser", strings.TrimSpace(format.Title(s.Browser)+" "+s.BrowserVersion)))
	b.WriteString(field("Platform", format.Title(s.PlatformName)))
	b.WriteString(field("Screen", s.ScreenResolution))
	b.WriteString(field("Mode", format.Mode(s)))

	switch view.Row.(type) {
	case models.ActiveRow:
		m.renderLive(&b, s, now)
	case models.TerminatedRow:
		renderArchived(&b, view.Loading, view.Err, view.Details, view.Logs)
		renderCommands(&b, view.Commands.Commands, view.Commands.Exhausted, view.Commands.Err)
	}
	return b.String()
}

func (m Model) renderLive(b *strings.Builder, s models.Session, now time.Time) {
	if s.CreatedAt > 0 {
		b.WriteString(field("Available", format.Availability(s.CreatedAt, m.sessionDuration, nil)))
		if s.Manual {
			b.WriteString(field("Remaining", format.Duration(format.Remaining(s.CreatedAt, m.sessionDuration, now))))
		}
	}
	vnc, logs := m.backend.StreamStatus()
	b.WriteString(field("VNC", string(vnc)))
	b.WriteString(field("Logs", string(logs)))

	lines := m.backend.LogLines()
	if len(lines) == 0 {
		return
	}
	writeLogTail(b, "Live log", lines)
}

func renderArchived(b *strings.Builder, loading bool, err error, d *models.SessionDetails, logs []byte) {
	if loading {
		b.WriteString(LabelStyle.Render("Loading…") + "\n")
	}
	if err != nil {
		b.WriteString(toastStyle(console.LevelError).Render(err.Error()) + "\n")
	}
	if d != nil {
		b.WriteString(field("Image", d.Image))
		b.WriteString(field("Video", d.VideoRefAddr))
		b.WriteString(field("Log file", d.LogsRefAddr))
	}
	if len(logs) == 0 {
		return
	}
	writeLogTail(b, "Session log", stream.Decode(logs))
}

// writeLogTail prints the last maxLogLines lines under a heading
func writeLogTail(b *strings.Builder, title string, lines []string) {
	if len(lines) > maxLogLines {
		lines = lines[len(lines)-maxLogLines:]
	}
	b.WriteString("\n")
	b.WriteString(HeaderStyle.Render(title))
	b.WriteString("\n")
	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func renderCommands(b *strings.Builder, cmds []models.Command, exhausted bool, err error) {
	b.WriteString("\n")
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("Commands (%d)", len(cmds))))
	b.WriteString("\n")
	for _, cmd := range cmds {
		offset := format.Duration(format.CommandOffset(cmd, cmds[0]))
		fmt.Fprintf(b, "%s  %-6s %-8s %s %d\n",
			LabelStyle.Render(offset), cmd.Method, format.Method(cmd.Command), cmd.Command, cmd.StatusCode)
	}
	switch {
	case err != nil:
		b.WriteString(toastStyle(console.LevelError).Render("Failed to load commands: "+err.Error()) + "\n")
	case exhausted:
		b.WriteString(LabelStyle.Render("End of command log") + "\n")
	default:
		b.WriteString(LabelStyle.Render("Scroll down or press n for more") + "\n")
	}
}
