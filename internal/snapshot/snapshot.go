// Package snapshot reconstructs, for each day in a range, how many jobs were
// in each stage as of that day.
package snapshot

import (
	"time"

	"github.com/h0rv/jobtrack/internal/domain"
)

// Classifier maps a status name to its stage.
type Classifier interface {
	Determine(status string) domain.Stage
}

// Aggregator builds point-in-time snapshot tables from job histories.
type Aggregator struct {
	classify Classifier
}

// New creates an Aggregator using the given classifier.
func New(c Classifier) *Aggregator {
	return &Aggregator{classify: c}
}

// CreationStage returns the stage an issue started in: the From side of its
// earliest status change, or its current status when it never changed.
func (a *Aggregator) CreationStage(issue domain.Issue) domain.Stage {
	if len(issue.History) == 0 {
		return a.classify.Determine(issue.Status)
	}
	earliest := issue.History[0]
	for _, ch := range issue.History[1:] {
		if ch.ChangedAt.Before(earliest.ChangedAt) {
			earliest = ch
		}
	}
	return a.classify.Determine(earliest.From)
}

// StageOn returns the stage a job was in at the end of day. The bool is false
// when the job had not been created yet.
func (a *Aggregator) StageOn(job domain.Job, day time.Time) (domain.Stage, bool) {
	day = domain.Day(day)
	if domain.Day(job.CreatedAt).After(day) {
		return 0, false
	}

	var (
		last  domain.StatusChange
		found bool
	)
	for _, ch := range job.History {
		if domain.Day(ch.ChangedAt).After(day) {
			continue
		}
		if !found || !ch.ChangedAt.Before(last.ChangedAt) {
			last = ch
			found = true
		}
	}
	if found {
		return a.classify.Determine(last.To), true
	}
	return job.CreationStage, true
}

// Aggregate builds one row per date with a column per stage. A nil or empty
// stages slice selects domain.ChartStages. Under UnitTestNumber each job
// contributes its test number and invalid jobs contribute nothing.
func (a *Aggregator) Aggregate(jobs []domain.Job, dates []time.Time, unit domain.Unit, stages []domain.Stage) domain.Table {
	if len(stages) == 0 {
		stages = domain.ChartStages
	}
	inScope := make(map[domain.Stage]bool, len(stages))
	for _, s := range stages {
		inScope[s] = true
	}

	table := domain.Table{
		Stages: append([]domain.Stage(nil), stages...),
		Rows:   make([]domain.Row, 0, len(dates)),
	}

	for _, d := range dates {
		row := domain.Row{Date: domain.Day(d), Counts: make(map[domain.Stage]int, len(stages))}
		for _, s := range stages {
			row.Counts[s] = 0
		}

		for _, job := range jobs {
			st, ok := a.StageOn(job, d)
			if !ok || !inScope[st] {
				continue
			}
			row.Counts[st] += weight(job, unit)
		}
		table.Rows = append(table.Rows, row)
	}

	return table
}

func weight(job domain.Job, unit domain.Unit) int {
	if unit == domain.UnitTestNumber {
		if !job.Valid {
			return 0
		}
		return job.TestNumber
	}
	return 1
}

// Delta converts a cumulative table into day-over-day changes. The first row
// is kept as is; summing every delta row reproduces the last cumulative row.
func Delta(t domain.Table) domain.Table {
	out := domain.Table{Stages: t.Stages, Rows: make([]domain.Row, len(t.Rows))}
	for i, row := range t.Rows {
		counts := make(map[domain.Stage]int, len(t.Stages))
		for _, s := range t.Stages {
			counts[s] = row.Count(s)
			if i > 0 {
				counts[s] -= t.Rows[i-1].Count(s)
			}
		}
		out.Rows[i] = domain.Row{Date: row.Date, Counts: counts}
	}
	return out
}

// DateRange returns every calendar day from start to end inclusive.
// It returns nil when end is before start.
func DateRange(start, end time.Time) []time.Time {
	start, end = domain.Day(start), domain.Day(end)
	if end.Before(start) {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// WeekdaysOnly drops Saturday and Sunday rows. Counts are not changed.
func WeekdaysOnly(t domain.Table) domain.Table {
	out := domain.Table{Stages: t.Stages}
	for _, row := range t.Rows {
		switch row.Date.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// WeekOf returns the Monday and Friday of the week containing t.
func WeekOf(t time.Time) (time.Time, time.Time) {
	d := domain.Day(t)
	offset := (int(d.Weekday()) + 6) % 7 // days since Monday
	monday := d.AddDate(0, 0, -offset)
	return monday, monday.AddDate(0, 0, 4)
}

// Totals counts jobs by current stage. Under UnitTestNumber the valid jobs'
// test numbers are summed instead.
func Totals(jobs []domain.Job, unit domain.Unit) map[domain.Stage]int {
	totals := make(map[domain.Stage]int, len(domain.AllStages))
	for _, s := range domain.AllStages {
		totals[s] = 0
	}
	for _, job := range jobs {
		totals[job.CurrentStage] += weight(job, unit)
	}
	return totals
}

// Percentages returns each stage's share of the grand total, 0-100.
// All shares are zero when the total is zero.
func Percentages(totals map[domain.Stage]int) map[domain.Stage]float64 {
	sum := 0
	for _, n := range totals {
		sum += n
	}
	out := make(map[domain.Stage]float64, len(totals))
	for s, n := range totals {
		if sum == 0 {
			out[s] = 0
			continue
		}
		out[s] = float64(n) * 100 / float64(sum)
	}
	return out
}
