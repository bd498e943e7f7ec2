package tui

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/h0rv/jobtrack/internal/jira"
	"github.com/h0rv/jobtrack/internal/snapshot"
	"github.com/h0rv/jobtrack/internal/tracker"
	"github.com/pkg/browser"
)

// Layout constants
const (
	dateLabelWidth  = 11 // "Mon Jan 02 "
	stageLabelWidth = 20
	valueWidth      = 6
)

// ChartModel shows the per-stage time series for one week.
type ChartModel struct {
	// Dependencies
	source    DataSource
	ctx       context.Context
	searchURL func(jql string) string

	// UI components
	keymap  KeyMap
	help    HelpModel
	spinner spinner.Model

	// Query state
	query       tracker.Query
	stageIdx    int // 0 = chart stages, otherwise AllStages[stageIdx-1]
	locationIdx int // 0 = every location, otherwise AllLocations[locationIdx-1]

	// View state
	result       *tracker.Result
	width        int
	height       int
	showHelp     bool
	loading      bool
	errorToast   string
	refreshEvery time.Duration
	gen          int // tags refresh ticks; a replaced chart ignores its old ticks
}

// NewChartModel creates a chart over the week of q.End (or the current week).
func NewChartModel(ctx context.Context, source DataSource, q tracker.Query, refreshEvery time.Duration, searchURL func(string) string) ChartModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	if q.Start.IsZero() || q.End.IsZero() {
		ref := q.End
		if ref.IsZero() {
			ref = time.Now()
		}
		q.Start, q.End = snapshot.WeekOf(ref)
	}

	return ChartModel{
		source:       source,
		ctx:          ctx,
		searchURL:    searchURL,
		keymap:       DefaultKeyMap(),
		help:         NewHelpModel(DefaultKeyMap()),
		spinner:      sp,
		query:        q,
		refreshEvery: refreshEvery,
		loading:      true,
	}
}

// Init starts the first load and the auto refresh timer. The first load
// bypasses the cache when the initial query sets ForceRefresh.
func (m ChartModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.WindowSize(),
		m.load(m.query.ForceRefresh),
		m.scheduleRefresh(),
	)
}

// Update handles messages
func (m ChartModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case dataLoadedMsg:
		if !sameQuery(msg.query, m.query) {
			// Answer to a query the user has since changed.
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			if errors.Is(msg.err, jira.ErrNotConfigured) {
				return m, func() tea.Msg { return ErrorMsg{Err: msg.err} }
			}
			m.errorToast = fmt.Sprintf("Load failed: %v", msg.err)
			return m, nil
		}
		m.errorToast = ""
		m.result = msg.result
		return m, nil

	case refreshTickMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		// The entry may be just under the TTL here, so bypass the cache.
		m.loading = true
		return m, tea.Batch(m.load(true), m.scheduleRefresh())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

// handleKeyPress processes keyboard input
func (m ChartModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keymap.Help, m.keymap.Back) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keymap.PrevWeek):
		m.shiftWeek(-1)
	case key.Matches(msg, m.keymap.NextWeek):
		m.shiftWeek(1)
	case key.Matches(msg, m.keymap.Stage):
		m.stageIdx = (m.stageIdx + 1) % (len(domain.AllStages) + 1)
		m.query.Stages = nil
		if m.stageIdx > 0 {
			m.query.Stages = []domain.Stage{domain.AllStages[m.stageIdx-1]}
		}
	case key.Matches(msg, m.keymap.Location):
		m.locationIdx = (m.locationIdx + 1) % (len(domain.AllLocations) + 1)
		m.query.Locations = nil
		if m.locationIdx > 0 {
			m.query.Locations = []domain.Location{domain.AllLocations[m.locationIdx-1]}
		}
	case key.Matches(msg, m.keymap.Unit):
		if m.query.Unit == domain.UnitCount {
			m.query.Unit = domain.UnitTestNumber
		} else {
			m.query.Unit = domain.UnitCount
		}
	case key.Matches(msg, m.keymap.View):
		if m.query.View == domain.ViewCumulative {
			m.query.View = domain.ViewDaily
		} else {
			m.query.View = domain.ViewCumulative
		}
	case key.Matches(msg, m.keymap.Weekdays):
		m.query.WeekdaysOnly = !m.query.WeekdaysOnly
	case key.Matches(msg, m.keymap.Refresh):
		m.loading = true
		return m, m.load(true)
	case key.Matches(msg, m.keymap.Jobs):
		if m.result != nil {
			result := m.result
			return m, func() tea.Msg { return openJobsMsg{result: result} }
		}
		return m, nil
	case key.Matches(msg, m.keymap.Diagnostics):
		if m.result != nil {
			diags := m.result.Diagnostics
			return m, func() tea.Msg { return openDiagnosticsMsg{diagnostics: diags} }
		}
		return m, nil
	case key.Matches(msg, m.keymap.Open):
		if m.searchURL != nil {
			if err := browser.OpenURL(m.searchURL(tracker.JQL(m.query.Project))); err != nil {
				m.errorToast = fmt.Sprintf("Open failed: %v", err)
			}
		}
		return m, nil
	case key.Matches(msg, m.keymap.Project):
		return m, func() tea.Msg { return changeProjectMsg{} }
	default:
		return m, nil
	}

	// Filters changed: re-aggregate, served from the cache while fresh.
	m.loading = true
	return m, m.load(false)
}

func (m *ChartModel) shiftWeek(weeks int) {
	m.query.Start = m.query.Start.AddDate(0, 0, 7*weeks)
	m.query.End = m.query.End.AddDate(0, 0, 7*weeks)
}

// View renders the chart - fills the terminal
func (m ChartModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	sections := []string{
		m.renderHeader(width),
		m.renderFilters(width),
	}
	bodyHeight := height - 4 // header, filters, totals, hint
	if bodyHeight < 5 {
		bodyHeight = 5
	}

	var body string
	switch {
	case m.showHelp:
		body = m.help.View(width)
	case m.result == nil && m.loading:
		body = lipgloss.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center, m.spinner.View()+" Loading...")
	case m.result == nil:
		body = lipgloss.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center, "No data. Press 'r' to refresh.")
	default:
		body = RenderChart(m.result.Table, width)
	}
	sections = append(sections, body)

	if m.result != nil && !m.showHelp {
		sections = append(sections, RenderTotals(m.result.Totals, m.result.Percentages))
	}
	sections = append(sections, dimStyle.Render(m.help.ShortView()))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title on the left and fetch status on the right
func (m ChartModel) renderHeader(width int) string {
	project := m.query.Project
	if project == "" {
		project = "all projects"
	}
	title := fmt.Sprintf("%s  %s - %s", project,
		m.query.Start.Format("Jan 02"), m.query.End.Format("Jan 02, 2006"))

	var statusParts []string
	if m.loading {
		statusParts = append(statusParts, m.spinner.View()+"loading")
	}
	if m.result != nil {
		statusParts = append(statusParts, fmt.Sprintf("%d jobs", len(m.result.Jobs)))
		fetched := "fetched " + humanize.Time(m.result.FetchedAt)
		if m.result.Cached {
			fetched += " (cached)"
		}
		statusParts = append(statusParts, fetched)
		if n := len(m.result.Diagnostics); n > 0 {
			statusParts = append(statusParts, WarningStyle.Render(fmt.Sprintf("%d diagnostics", n)))
		}
	}
	status := strings.Join(statusParts, " | ")

	padding := width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if padding < 1 {
		padding = 1
	}
	return headerStyle.Render(title) + strings.Repeat(" ", padding) + dimStyle.Render(status)
}

// renderFilters renders the active query settings and any error toast
func (m ChartModel) renderFilters(width int) string {
	stageName := "charted stages"
	if m.stageIdx > 0 {
		stageName = domain.AllStages[m.stageIdx-1].String()
	}
	location := "all locations"
	if m.locationIdx > 0 {
		location = string(domain.AllLocations[m.locationIdx-1])
	}
	parts := []string{stageName, location, m.query.Unit.String(), m.query.View.String()}
	if m.query.WeekdaysOnly {
		parts = append(parts, "weekdays")
	}
	left := strings.Join(parts, " · ")

	right := ""
	if m.errorToast != "" {
		right = ErrorStyle.Render(m.errorToast)
	}
	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return dimStyle.Render(left) + strings.Repeat(" ", padding) + right
}

func (m ChartModel) load(force bool) tea.Cmd {
	q := m.query
	q.ForceRefresh = force
	source, ctx := m.source, m.ctx
	return func() tea.Msg {
		res, err := source.GetData(ctx, q)
		return dataLoadedMsg{query: q, result: res, err: err}
	}
}

// sameQuery compares queries ignoring ForceRefresh.
func sameQuery(a, b tracker.Query) bool {
	a.ForceRefresh, b.ForceRefresh = false, false
	return reflect.DeepEqual(a, b)
}

func (m ChartModel) scheduleRefresh() tea.Cmd {
	if m.refreshEvery <= 0 {
		return nil
	}
	gen := m.gen
	return tea.Tick(m.refreshEvery, func(time.Time) tea.Msg { return refreshTickMsg{gen: gen} })
}

// RenderChart draws one block per day with a horizontal bar per stage.
// Bars are scaled to the largest absolute value in the table; negative
// daily deltas are drawn with a lighter glyph.
func RenderChart(table domain.Table, width int) string {
	if len(table.Rows) == 0 {
		return dimStyle.Render("No days in range.")
	}

	maxAbs := 0
	for _, r := range table.Rows {
		for _, s := range table.Stages {
			if v := abs(r.Count(s)); v > maxAbs {
				maxAbs = v
			}
		}
	}

	barSpace := width - dateLabelWidth - stageLabelWidth - valueWidth - 2
	if barSpace < 5 {
		barSpace = 5
	}

	var b strings.Builder
	for i, r := range table.Rows {
		if i > 0 {
			b.WriteString("\n")
		}
		for j, s := range table.Stages {
			label := ""
			if j == 0 {
				label = r.Date.Format("Mon Jan 02")
			}
			v := r.Count(s)
			n := 0
			if maxAbs > 0 {
				n = abs(v) * barSpace / maxAbs
			}
			if v != 0 && n == 0 {
				n = 1
			}
			glyph := "█"
			if v < 0 {
				glyph = "░"
			}

			fmt.Fprintf(&b, "%-*s%-*s%s %*d\n",
				dateLabelWidth, label,
				stageLabelWidth, s.String(),
				stageStyle(s).Render(strings.Repeat(glyph, n))+strings.Repeat(" ", barSpace-n),
				valueWidth, v,
			)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderTotals renders current-stage totals with their share.
func RenderTotals(totals map[domain.Stage]int, percentages map[domain.Stage]float64) string {
	parts := make([]string, 0, len(domain.AllStages))
	for _, s := range domain.AllStages {
		parts = append(parts, stageStyle(s).Render(
			fmt.Sprintf("%s %d (%.1f%%)", s, totals[s], percentages[s]),
		))
	}
	return strings.Join(parts, "  ")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
