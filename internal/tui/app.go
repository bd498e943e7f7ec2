package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/jobtrack/internal/tracker"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenLoading AppScreen = iota
	ScreenProjectPicker
	ScreenChart
	ScreenJobs
	ScreenDiagnostics
)

// DataSource produces aggregated results for a query.
type DataSource interface {
	GetData(ctx context.Context, q tracker.Query) (*tracker.Result, error)
}

// Options configures the app.
type Options struct {
	Projects     []string      // configured project keys, offered by the picker
	Query        tracker.Query // initial query; an empty Project opens the picker when several are configured
	RefreshEvery time.Duration // auto refresh period, usually the cache TTL
	SearchURL    func(jql string) string
}

// AppModel is the root Bubble Tea model that manages screen transitions.
// It orchestrates the flow from project selection -> chart, with the job
// list and diagnostics as overlays on the chart.
type AppModel struct {
	// Dependencies
	source DataSource
	ctx    context.Context
	opts   Options

	// Current state
	currentScreen AppScreen
	currentModel  tea.Model
	err           error

	// Cached chart to preserve state across screen transitions
	chartModel *ChartModel
	chartGen   int
}

// NewAppModel creates a new app model.
func NewAppModel(ctx context.Context, source DataSource, opts Options) AppModel {
	return AppModel{
		source:        source,
		ctx:           ctx,
		opts:          opts,
		currentScreen: ScreenLoading,
	}
}

// Init initializes the app model.
func (m AppModel) Init() tea.Cmd {
	project := m.opts.Query.Project
	if project == "" && len(m.opts.Projects) == 1 {
		project = m.opts.Projects[0]
	}
	if project != "" || len(m.opts.Projects) == 0 {
		return func() tea.Msg { return ProjectSelectedMsg{Project: project} }
	}
	return func() tea.Msg { return changeProjectMsg{} }
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && (m.err != nil || m.currentModel == nil) {
			return m, tea.Quit
		}

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case QuitMsg:
		return m, tea.Quit

	case changeProjectMsg:
		m.currentScreen = ScreenProjectPicker
		picker := NewProjectPickerModel(m.opts.Projects)
		m.currentModel = picker
		return m, picker.Init()

	case ProjectSelectedMsg:
		q := m.opts.Query
		if m.chartModel != nil {
			q = m.chartModel.query // keep the week and filters
		}
		q.Project = msg.Project
		// The cache is not keyed by project.
		q.ForceRefresh = m.chartModel != nil && m.chartModel.query.Project != msg.Project

		chart := NewChartModel(m.ctx, m.source, q, m.opts.RefreshEvery, m.opts.SearchURL)
		m.chartGen++
		chart.gen = m.chartGen
		if m.chartModel != nil {
			chart.stageIdx = m.chartModel.stageIdx
			chart.locationIdx = m.chartModel.locationIdx
		}
		m.chartModel = &chart
		m.currentScreen = ScreenChart
		m.currentModel = chart
		return m, chart.Init()

	case openJobsMsg:
		m.currentScreen = ScreenJobs
		jobs := NewJobsModel(msg.result)
		m.currentModel = jobs
		return m, jobs.Init()

	case openDiagnosticsMsg:
		m.currentScreen = ScreenDiagnostics
		diags := NewDiagnosticsModel(msg.diagnostics)
		m.currentModel = diags
		return m, diags.Init()

	case closeOverlayMsg:
		m.currentScreen = ScreenChart
		m.currentModel = *m.chartModel
		return m, tea.WindowSize()

	case dataLoadedMsg, refreshTickMsg:
		// Data for the chart may arrive while an overlay is open.
		if m.chartModel != nil && m.currentScreen != ScreenChart {
			updated, cmd := m.chartModel.Update(msg)
			if cm, ok := updated.(ChartModel); ok {
				m.chartModel = &cm
			}
			return m, cmd
		}
	}

	// Delegate to current screen's model
	if m.currentModel != nil {
		var cmd tea.Cmd
		m.currentModel, cmd = m.currentModel.Update(msg)
		// Keep chartModel in sync when on chart screen
		if m.currentScreen == ScreenChart {
			if cm, ok := m.currentModel.(ChartModel); ok {
				m.chartModel = &cm
			}
		}
		return m, cmd
	}

	return m, nil
}

// View renders the current screen.
func (m AppModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v\n\nPress Ctrl+C to quit", m.err))
	}

	if m.currentModel != nil {
		return m.currentModel.View()
	}

	return "Connecting to Jira...\n\nPress Ctrl+C to quit"
}
