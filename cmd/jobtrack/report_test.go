package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/h0rv/jobtrack/internal/config"
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/h0rv/jobtrack/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *tracker.Result {
	mon := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	return &tracker.Result{
		Query: tracker.Query{Project: "MTEST", Start: mon, End: mon.AddDate(0, 0, 1)},
		Jobs: []domain.Job{
			{Issue: domain.Issue{Key: "MTEST-1", Summary: "MT-24-001-3", Status: "Open", CreatedAt: mon}, Valid: true, TestNumber: 3, Location: domain.LocationToronto},
			{Issue: domain.Issue{Key: "MTEST-2", Summary: "oops", Status: "Testing", CreatedAt: mon}, Location: domain.LocationEdmonton, CurrentStage: domain.StageTesting},
		},
		Totals:      map[domain.Stage]int{domain.StageOpen: 1, domain.StageTesting: 1},
		Percentages: map[domain.Stage]float64{domain.StageOpen: 50, domain.StageTesting: 50},
		Table: domain.Table{
			Stages: []domain.Stage{domain.StageOpen, domain.StageTesting},
			Rows: []domain.Row{
				{Date: mon, Counts: map[domain.Stage]int{domain.StageOpen: 2, domain.StageTesting: 0}},
				{Date: mon.AddDate(0, 0, 1), Counts: map[domain.Stage]int{domain.StageOpen: 1, domain.StageTesting: 1}},
			},
		},
		Diagnostics: []domain.Diagnostic{
			{Kind: domain.DiagTransport, Message: "fetch stopped at offset 100: maintenance"},
			{Kind: domain.DiagValidation, IssueKey: "MTEST-2", Text: "oops", Message: "summary is not a job number"},
		},
		FetchedAt: time.Now(),
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	writeReport(&buf, sampleResult())
	out := buf.String()

	assert.Contains(t, out, "MTEST  2024-01-08 to 2024-01-09")
	assert.Contains(t, out, "Mon 2024-01-08")
	assert.Contains(t, out, "Tue 2024-01-09")
	assert.Contains(t, out, "Testing")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "2 jobs")
	assert.Contains(t, out, "2 diagnostics:")
	assert.Contains(t, out, "[transport]")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, sampleResult()))

	var got struct {
		Project string   `json:"project"`
		Stages  []string `json:"stages"`
		Rows    []struct {
			Date   string         `json:"date"`
			Counts map[string]int `json:"counts"`
		} `json:"rows"`
		Totals      map[string]int `json:"totals"`
		Diagnostics []struct {
			Kind string `json:"kind"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "MTEST", got.Project)
	assert.Equal(t, []string{"Open", "Testing"}, got.Stages)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "2024-01-09", got.Rows[1].Date)
	assert.Equal(t, 1, got.Rows[1].Counts["Testing"])
	assert.Equal(t, 1, got.Totals["Open"])
	assert.Len(t, got.Diagnostics, 2)
}

func TestWriteJobs_OnlyValidationDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	writeJobs(&buf, sampleResult())
	out := buf.String()

	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "KEY"))
	assert.Contains(t, lines[1], "MTEST-1")
	assert.Contains(t, lines[2], "!")
	assert.Contains(t, out, "1 diagnostics:")
	assert.NotContains(t, out, "[transport]")
}

func TestQueryFlags(t *testing.T) {
	t.Cleanup(func() {
		projectFlag, startFlag, endFlag = "", "", ""
		stageFlags, locationFlag = nil, nil
		unitFlag, viewFlag = "count", "cumulative"
	})

	a := &app{cfg: &config.Config{Projects: []string{"MTEST", "CHEM"}}}

	projectFlag, startFlag, endFlag = "", "2024-01-01", "2024-01-05"
	stageFlags = []string{"testing", "sample-preparation"}
	locationFlag = []string{"yeg"}
	unitFlag, viewFlag = "test-number", "daily"

	_, err := a.query()
	assert.ErrorContains(t, err, "--location")

	locationFlag = []string{"edmonton"}
	q, err := a.query()
	require.NoError(t, err)
	assert.Equal(t, "MTEST", q.Project)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), q.Start)
	assert.Equal(t, []domain.Stage{domain.StageTesting, domain.StageSamplePreparation}, q.Stages)
	assert.Equal(t, []domain.Location{domain.LocationEdmonton}, q.Locations)
	assert.Equal(t, domain.UnitTestNumber, q.Unit)
	assert.Equal(t, domain.ViewDaily, q.View)

	startFlag = "01/01/2024"
	_, err = a.query()
	assert.ErrorContains(t, err, "--start")
}
