package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/h0rv/jobtrack/internal/jira"
	"github.com/h0rv/jobtrack/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource records every query and answers with a fixed result
type fakeSource struct {
	mu      sync.Mutex
	queries []tracker.Query
	result  *tracker.Result
	err     error
}

func (f *fakeSource) GetData(_ context.Context, q tracker.Query) (*tracker.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSource) last() tracker.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func weekQuery() tracker.Query {
	return tracker.Query{Project: "MTEST", Start: day("2024-01-08"), End: day("2024-01-12")}
}

func createTestResult() *tracker.Result {
	table := domain.Table{
		Stages: []domain.Stage{domain.StageOpen, domain.StageTesting},
		Rows: []domain.Row{
			{Date: day("2024-01-08"), Counts: map[domain.Stage]int{domain.StageOpen: 4, domain.StageTesting: 1}},
			{Date: day("2024-01-09"), Counts: map[domain.Stage]int{domain.StageOpen: 2, domain.StageTesting: 3}},
		},
	}
	return &tracker.Result{
		Query: weekQuery(),
		Jobs: []domain.Job{
			{Issue: domain.Issue{Key: "MTEST-1", Summary: "MT-24-001-3", Status: "Open"}, Valid: true, TestNumber: 3, Location: domain.LocationToronto, CurrentStage: domain.StageOpen},
			{Issue: domain.Issue{Key: "MTEST-2", Summary: "bad summary", Status: "Testing"}, Location: domain.LocationMontreal, CurrentStage: domain.StageTesting},
		},
		Totals:      map[domain.Stage]int{domain.StageOpen: 1, domain.StageTesting: 1},
		Percentages: map[domain.Stage]float64{domain.StageOpen: 50, domain.StageTesting: 50},
		Table:       table,
		Diagnostics: []domain.Diagnostic{
			{Kind: domain.DiagValidation, IssueKey: "MTEST-2", Text: "bad summary", Message: "summary is not a job number"},
		},
		FetchedAt: time.Now(),
	}
}

// runCmd executes cmd and any batched commands, returning the messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			msgs = append(msgs, runCmd(c)...)
		}
		return msgs
	}
	return []tea.Msg{msg}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func pressKey(t *testing.T, m ChartModel, r rune) (ChartModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(runeKey(r))
	cm, ok := updated.(ChartModel)
	require.True(t, ok, "Update should return a ChartModel")
	return cm, cmd
}

func TestRenderChart_RowsPerStage(t *testing.T) {
	out := RenderChart(createTestResult().Table, 80)
	lines := strings.Split(out, "\n")

	// 2 days x 2 stages
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Mon Jan 08")
	assert.Contains(t, lines[0], "Open")
	assert.Contains(t, lines[1], "Testing")
	assert.Contains(t, lines[2], "Tue Jan 09")
	assert.True(t, strings.HasSuffix(strings.TrimRight(lines[0], " "), "4"))
}

func TestRenderChart_ScalesToLargestValue(t *testing.T) {
	out := RenderChart(createTestResult().Table, 80)
	lines := strings.Split(out, "\n")

	full := strings.Count(lines[0], "█")
	quarter := strings.Count(lines[1], "█")
	assert.Greater(t, full, quarter)
	assert.Equal(t, full/4, quarter)
}

func TestRenderChart_NegativeUsesLightGlyph(t *testing.T) {
	table := domain.Table{
		Stages: []domain.Stage{domain.StageOpen},
		Rows: []domain.Row{
			{Date: day("2024-01-08"), Counts: map[domain.Stage]int{domain.StageOpen: -2}},
		},
	}
	out := RenderChart(table, 60)
	assert.Contains(t, out, "░")
	assert.NotContains(t, out, "█")
	assert.Contains(t, out, "-2")
}

func TestRenderChart_Empty(t *testing.T) {
	assert.Contains(t, RenderChart(domain.Table{}, 80), "No days in range")
}

func TestRenderTotals(t *testing.T) {
	r := createTestResult()
	out := RenderTotals(r.Totals, r.Percentages)
	assert.Contains(t, out, "Open 1 (50.0%)")
	assert.Contains(t, out, "Other 0 (0.0%)")
}

func TestChartModel_DefaultsToCurrentWeek(t *testing.T) {
	m := NewChartModel(context.Background(), &fakeSource{}, tracker.Query{}, 0, nil)
	assert.False(t, m.query.Start.IsZero())
	assert.Equal(t, time.Monday, m.query.Start.Weekday())
	assert.Equal(t, time.Friday, m.query.End.Weekday())
}

func TestChartModel_WeekNavigation(t *testing.T) {
	src := &fakeSource{result: createTestResult()}
	m := NewChartModel(context.Background(), src, weekQuery(), 0, nil)

	m, cmd := pressKey(t, m, '[')
	assert.Equal(t, day("2024-01-01"), m.query.Start)
	assert.Equal(t, day("2024-01-05"), m.query.End)
	require.NotNil(t, cmd)

	msg := cmd()
	_, ok := msg.(dataLoadedMsg)
	assert.True(t, ok, "week change should reload")
	assert.Equal(t, day("2024-01-01"), src.last().Start)
	assert.False(t, src.last().ForceRefresh)

	m, _ = pressKey(t, m, ']')
	m, _ = pressKey(t, m, ']')
	assert.Equal(t, day("2024-01-15"), m.query.Start)
}

func TestChartModel_FilterKeys(t *testing.T) {
	m := NewChartModel(context.Background(), &fakeSource{}, weekQuery(), 0, nil)

	m, _ = pressKey(t, m, 's')
	assert.Equal(t, []domain.Stage{domain.StageOpen}, m.query.Stages)

	// Cycling past the last stage returns to the charted stages
	for range domain.AllStages {
		m, _ = pressKey(t, m, 's')
	}
	assert.Nil(t, m.query.Stages)

	m, _ = pressKey(t, m, 'l')
	assert.Equal(t, []domain.Location{domain.LocationToronto}, m.query.Locations)

	m, _ = pressKey(t, m, 'u')
	assert.Equal(t, domain.UnitTestNumber, m.query.Unit)
	m, _ = pressKey(t, m, 'u')
	assert.Equal(t, domain.UnitCount, m.query.Unit)

	m, _ = pressKey(t, m, 'v')
	assert.Equal(t, domain.ViewDaily, m.query.View)

	m, _ = pressKey(t, m, 'w')
	assert.True(t, m.query.WeekdaysOnly)
}

func TestChartModel_RefreshForcesFetch(t *testing.T) {
	src := &fakeSource{result: createTestResult()}
	m := NewChartModel(context.Background(), src, weekQuery(), 0, nil)

	m, cmd := pressKey(t, m, 'r')
	require.NotNil(t, cmd)
	assert.True(t, m.loading)

	cmd()
	assert.True(t, src.last().ForceRefresh)
}

func TestChartModel_DataLoaded(t *testing.T) {
	m := NewChartModel(context.Background(), &fakeSource{}, weekQuery(), 0, nil)
	m.errorToast = "Load failed: old"

	updated, cmd := m.Update(dataLoadedMsg{query: m.query, result: createTestResult()})
	cm := updated.(ChartModel)
	assert.Nil(t, cmd)
	assert.False(t, cm.loading)
	assert.Empty(t, cm.errorToast)
	require.NotNil(t, cm.result)

	view := cm.View()
	assert.Contains(t, view, "MTEST")
	assert.Contains(t, view, "2 jobs")
	assert.Contains(t, view, "1 diagnostics")
}

func TestChartModel_LoadErrors(t *testing.T) {
	m := NewChartModel(context.Background(), &fakeSource{}, weekQuery(), 0, nil)

	updated, cmd := m.Update(dataLoadedMsg{query: m.query, err: assert.AnError})
	assert.Nil(t, cmd)
	assert.Contains(t, updated.(ChartModel).errorToast, "Load failed")

	_, cmd = m.Update(dataLoadedMsg{query: m.query, err: jira.ErrNotConfigured})
	require.NotNil(t, cmd)
	msg, ok := cmd().(ErrorMsg)
	require.True(t, ok)
	assert.ErrorIs(t, msg.Err, jira.ErrNotConfigured)
}

func TestChartModel_OverlayKeysNeedResult(t *testing.T) {
	m := NewChartModel(context.Background(), &fakeSource{}, weekQuery(), 0, nil)

	_, cmd := pressKey(t, m, 'j')
	assert.Nil(t, cmd, "no job list before the first load")

	m.result = createTestResult()
	_, cmd = pressKey(t, m, 'j')
	require.NotNil(t, cmd)
	_, ok := cmd().(openJobsMsg)
	assert.True(t, ok)

	_, cmd = pressKey(t, m, 'd')
	require.NotNil(t, cmd)
	diags, ok := cmd().(openDiagnosticsMsg)
	require.True(t, ok)
	assert.Len(t, diags.diagnostics, 1)
}

func TestChartModel_HelpToggle(t *testing.T) {
	m := NewChartModel(context.Background(), &fakeSource{}, weekQuery(), 0, nil)

	m, _ = pressKey(t, m, '?')
	assert.True(t, m.showHelp)

	// Filter keys are ignored while help is shown
	m, cmd := pressKey(t, m, 'u')
	assert.Nil(t, cmd)
	assert.Equal(t, domain.UnitCount, m.query.Unit)

	m, _ = pressKey(t, m, '?')
	assert.False(t, m.showHelp)
}

func TestChartModel_View_NotPanic(t *testing.T) {
	m := NewChartModel(context.Background(), &fakeSource{}, weekQuery(), 0, nil)

	assert.NotPanics(t, func() { _ = m.View() })

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 8})
	cm := updated.(ChartModel)
	cm.result = createTestResult()
	assert.NotPanics(t, func() { _ = cm.View() })
}

func TestChartModel_DropsStaleLoad(t *testing.T) {
	src := &fakeSource{result: createTestResult()}
	m := NewChartModel(context.Background(), src, weekQuery(), 0, nil)

	m, first := pressKey(t, m, 'u')
	m, second := pressKey(t, m, 'u')
	require.NotNil(t, first)
	require.NotNil(t, second)
	require.Equal(t, domain.UnitCount, m.query.Unit)

	// Test number load answered after the switch back to counts
	stale := first().(dataLoadedMsg)
	updated, _ := m.Update(stale)
	cm := updated.(ChartModel)
	assert.Nil(t, cm.result)
	assert.True(t, cm.loading)

	fresh := second().(dataLoadedMsg)
	updated, _ = cm.Update(fresh)
	cm = updated.(ChartModel)
	assert.NotNil(t, cm.result)
	assert.False(t, cm.loading)
}

func TestChartModel_RefreshTickBypassesCache(t *testing.T) {
	src := &fakeSource{result: createTestResult()}
	m := NewChartModel(context.Background(), src, weekQuery(), 0, nil)

	updated, cmd := m.Update(refreshTickMsg{gen: m.gen})
	assert.True(t, updated.(ChartModel).loading)

	var loaded bool
	for _, msg := range runCmd(cmd) {
		if _, ok := msg.(dataLoadedMsg); ok {
			loaded = true
		}
	}
	assert.True(t, loaded)
	assert.True(t, src.last().ForceRefresh)
}

func TestChartModel_IgnoresTickFromOtherGeneration(t *testing.T) {
	m := NewChartModel(context.Background(), &fakeSource{}, weekQuery(), time.Minute, nil)
	m.gen = 3
	m.loading = false

	updated, cmd := m.Update(refreshTickMsg{gen: 2})
	assert.Nil(t, cmd)
	assert.False(t, updated.(ChartModel).loading)
}
