package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/h0rv/jobtrack/internal/tracker"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

const (
	pagerHeaderHeight = 2
	pagerFooterHeight = 1
)

// PagerModel is a scrollable full-screen text view used for the job list
// and the diagnostics list. Content is re-rendered on resize.
type PagerModel struct {
	title    string
	render   func(width int) string
	viewport viewport.Model
	keymap   KeyMap

	width  int
	height int
}

func newPagerModel(title string, render func(width int) string) PagerModel {
	vp := viewport.New(80, 20) // resized in WindowSizeMsg
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	m := PagerModel{
		title:    title,
		render:   render,
		viewport: vp,
		keymap:   DefaultKeyMap(),
	}
	m.viewport.SetContent(render(vp.Width))
	return m
}

// NewJobsModel lists the jobs of a result in their sorted order.
func NewJobsModel(result *tracker.Result) PagerModel {
	title := fmt.Sprintf("Jobs (%d)", len(result.Jobs))
	return newPagerModel(title, func(width int) string {
		return RenderJobs(result.Jobs, width)
	})
}

// NewDiagnosticsModel lists diagnostics, newest last.
func NewDiagnosticsModel(diags []domain.Diagnostic) PagerModel {
	title := fmt.Sprintf("Diagnostics (%d)", len(diags))
	return newPagerModel(title, func(width int) string {
		return RenderDiagnostics(diags, width)
	})
}

// Init initializes the pager.
func (m PagerModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles scrolling and closing.
func (m PagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - pagerHeaderHeight - pagerFooterHeight
		if m.viewport.Height < 3 {
			m.viewport.Height = 3
		}
		m.viewport.SetContent(m.render(m.viewport.Width))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.ForceQuit):
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Back):
			return m, func() tea.Msg { return closeOverlayMsg{} }
		case msg.String() == "g":
			m.viewport.GotoTop()
			return m, nil
		case msg.String() == "G":
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the pager.
func (m PagerModel) View() string {
	header := TitleStyle.Render(m.title)

	pos := "TOP"
	switch {
	case m.viewport.AtTop():
	case m.viewport.AtBottom():
		pos = "END"
	default:
		pos = fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100))
	}
	footer := dimStyle.Render("[esc]back [↑/↓]scroll [g/G]top/bottom  " + pos)

	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), footer)
}

// RenderJobs formats one line per job: key, stage, status, location, test
// number and summary. Invalid job numbers are marked with "!".
func RenderJobs(jobs []domain.Job, width int) string {
	if len(jobs) == 0 {
		return dimStyle.Render("No jobs.")
	}

	var b strings.Builder
	var stage domain.Stage = -1
	for _, j := range jobs {
		if j.CurrentStage != stage {
			if stage != -1 {
				b.WriteString("\n")
			}
			stage = j.CurrentStage
			b.WriteString(stageStyle(stage).Bold(true).Render(stage.String()))
			b.WriteString("\n")
		}

		mark := " "
		if !j.Valid {
			mark = WarningStyle.Render("!")
		}
		line := fmt.Sprintf("%s %-12s %-18s %-9s %4d  %s",
			mark, j.Key, j.Status, j.Location, j.TestNumber, j.Summary)
		b.WriteString(truncate.StringWithTail(line, uint(max(width, 10)), "…"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderDiagnostics formats diagnostics with wrapped messages.
func RenderDiagnostics(diags []domain.Diagnostic, width int) string {
	if len(diags) == 0 {
		return dimStyle.Render("No diagnostics.")
	}

	wrapWidth := max(width-4, 20)
	var b strings.Builder
	for i, d := range diags {
		if i > 0 {
			b.WriteString("\n")
		}
		head := WarningStyle.Render("[" + string(d.Kind) + "]")
		if d.IssueKey != "" {
			head += " " + headerStyle.Render(d.IssueKey)
		}
		if !d.At.IsZero() {
			head += " " + dimStyle.Render(d.At.Format("15:04:05"))
		}
		b.WriteString(head)
		b.WriteString("\n")
		b.WriteString(indent(wordwrap.String(d.Message, wrapWidth), "  "))
		b.WriteString("\n")
		if d.Text != "" {
			b.WriteString(dimStyle.Render("  " + truncate.StringWithTail(d.Text, uint(wrapWidth), "…")))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
