package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(projects ...string) (AppModel, *fakeSource) {
	src := &fakeSource{result: createTestResult()}
	q := weekQuery()
	q.Project = ""
	return NewAppModel(context.Background(), src, Options{Projects: projects, Query: q}), src
}

func update(t *testing.T, m AppModel, msg tea.Msg) (AppModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	am, ok := updated.(AppModel)
	require.True(t, ok)
	return am, cmd
}

func TestAppModel_InitSingleProjectSkipsPicker(t *testing.T) {
	m, _ := newTestApp("MTEST")
	msg := m.Init()()
	selected, ok := msg.(ProjectSelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "MTEST", selected.Project)
}

func TestAppModel_InitSeveralProjectsShowsPicker(t *testing.T) {
	m, _ := newTestApp("MTEST", "CHEM")
	msg := m.Init()()
	_, ok := msg.(changeProjectMsg)
	require.True(t, ok)

	m, _ = update(t, m, msg)
	assert.Equal(t, ScreenProjectPicker, m.currentScreen)
	assert.Contains(t, m.View(), "Select a Project")
}

func TestAppModel_ProjectSelectedShowsChart(t *testing.T) {
	m, _ := newTestApp("MTEST")
	m, cmd := update(t, m, ProjectSelectedMsg{Project: "MTEST"})

	assert.Equal(t, ScreenChart, m.currentScreen)
	require.NotNil(t, m.chartModel)
	assert.Equal(t, "MTEST", m.chartModel.query.Project)
	assert.False(t, m.chartModel.query.ForceRefresh)
	assert.NotNil(t, cmd)
}

func TestAppModel_ChangingProjectForcesRefresh(t *testing.T) {
	m, _ := newTestApp("MTEST", "CHEM")
	m, _ = update(t, m, ProjectSelectedMsg{Project: "MTEST"})
	m, _ = update(t, m, runeKey('u'))
	require.Equal(t, domain.UnitTestNumber, m.chartModel.query.Unit)

	m, _ = update(t, m, ProjectSelectedMsg{Project: "CHEM"})
	assert.Equal(t, "CHEM", m.chartModel.query.Project)
	assert.True(t, m.chartModel.query.ForceRefresh)
	assert.Equal(t, domain.UnitTestNumber, m.chartModel.query.Unit, "filters survive a project change")

	m, _ = update(t, m, ProjectSelectedMsg{Project: "CHEM"})
	assert.False(t, m.chartModel.query.ForceRefresh)
}

func TestAppModel_DropsResultForPreviousProject(t *testing.T) {
	m, _ := newTestApp("MTEST", "CHEM")
	m, _ = update(t, m, ProjectSelectedMsg{Project: "MTEST"})
	previous := m.chartModel.query
	m, _ = update(t, m, ProjectSelectedMsg{Project: "CHEM"})

	// MTEST's load finishes after the switch
	m, _ = update(t, m, dataLoadedMsg{query: previous, result: createTestResult()})
	assert.Nil(t, m.chartModel.result)
	assert.True(t, m.chartModel.loading)

	chem := createTestResult()
	chem.Query.Project = "CHEM"
	m, _ = update(t, m, dataLoadedMsg{query: m.chartModel.query, result: chem})
	require.NotNil(t, m.chartModel.result)
	assert.Equal(t, "CHEM", m.chartModel.result.Query.Project)
}

func TestAppModel_OldRefreshChainStops(t *testing.T) {
	m, _ := newTestApp("MTEST", "CHEM")
	m, _ = update(t, m, ProjectSelectedMsg{Project: "MTEST"})
	first := m.chartModel.gen
	m, _ = update(t, m, ProjectSelectedMsg{Project: "CHEM"})
	require.NotEqual(t, first, m.chartModel.gen)

	_, cmd := update(t, m, refreshTickMsg{gen: first})
	assert.Nil(t, cmd, "tick from the replaced chart is not rescheduled")

	_, cmd = update(t, m, refreshTickMsg{gen: m.chartModel.gen})
	assert.NotNil(t, cmd)
}

func TestAppModel_Overlays(t *testing.T) {
	m, _ := newTestApp("MTEST")
	m, _ = update(t, m, ProjectSelectedMsg{Project: "MTEST"})
	m, _ = update(t, m, dataLoadedMsg{query: m.chartModel.query, result: createTestResult()})
	require.NotNil(t, m.chartModel.result)

	m, _ = update(t, m, openJobsMsg{result: m.chartModel.result})
	assert.Equal(t, ScreenJobs, m.currentScreen)
	assert.Contains(t, m.View(), "Jobs (2)")

	// Data arriving under an overlay goes to the chart
	fresh := createTestResult()
	fresh.Cached = true
	m, _ = update(t, m, dataLoadedMsg{query: m.chartModel.query, result: fresh})
	assert.Equal(t, ScreenJobs, m.currentScreen)
	assert.True(t, m.chartModel.result.Cached)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, ScreenChart, m.currentScreen)
	assert.True(t, m.currentModel.(ChartModel).result.Cached)

	m, _ = update(t, m, openDiagnosticsMsg{diagnostics: fresh.Diagnostics})
	assert.Equal(t, ScreenDiagnostics, m.currentScreen)
	assert.Contains(t, m.View(), "Diagnostics (1)")
}

func TestAppModel_ErrorView(t *testing.T) {
	m, _ := newTestApp("MTEST")
	m, _ = update(t, m, ErrorMsg{Err: assert.AnError})
	assert.Contains(t, m.View(), "Error:")

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}

func TestRenderJobs_GroupsByStage(t *testing.T) {
	out := RenderJobs(createTestResult().Jobs, 100)
	lines := strings.Split(out, "\n")

	require.Len(t, lines, 5) // header, job, blank, header, job
	assert.Equal(t, "Open", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "MTEST-1")
	assert.Contains(t, lines[1], "Toronto")
	assert.Equal(t, "Testing", strings.TrimSpace(lines[3]))
	assert.True(t, strings.HasPrefix(lines[4], "!"), "invalid job should be marked")
}

func TestRenderJobs_Truncation(t *testing.T) {
	jobs := createTestResult().Jobs
	jobs[0].Summary = strings.Repeat("x", 200)
	out := RenderJobs(jobs[:1], 40)
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 40)
	}
	assert.Contains(t, out, "…")
}

func TestRenderDiagnostics(t *testing.T) {
	diags := []domain.Diagnostic{
		{Kind: domain.DiagTransport, Message: "fetch stopped at offset 100: maintenance window in progress for the whole site"},
		{Kind: domain.DiagValidation, IssueKey: "MTEST-2", Text: "bad summary", Message: "summary is not a job number"},
	}
	out := RenderDiagnostics(diags, 30)

	assert.Contains(t, out, "[transport]")
	assert.Contains(t, out, "[validation] MTEST-2")
	assert.Contains(t, out, "  bad summary")
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "  ") {
			assert.LessOrEqual(t, len(line), 30)
		}
	}

	assert.Contains(t, RenderDiagnostics(nil, 80), "No diagnostics")
}
