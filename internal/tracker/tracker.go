// Package tracker implements the GetData contract consumed by the TUI and the
// report commands: fetch through the cache, enrich issues into jobs, filter,
// aggregate and summarize.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/h0rv/jobtrack/internal/jira"
	"github.com/h0rv/jobtrack/internal/jobnum"
	"github.com/h0rv/jobtrack/internal/snapshot"
	"github.com/h0rv/jobtrack/internal/stage"
	"github.com/h0rv/jobtrack/internal/store"
	"github.com/rs/zerolog"
)

// ErrInvalidRange is returned when End is before Start.
var ErrInvalidRange = errors.New("end date is before start date")

// Fetcher retrieves issues for a JQL query.
type Fetcher interface {
	FetchIssues(ctx context.Context, jql string) (jira.FetchResult, error)
}

// Query selects what GetData aggregates.
type Query struct {
	Project      string
	Start, End   time.Time // inclusive days; zero values select the current Monday-Friday week
	Stages       []domain.Stage
	Locations    []domain.Location // empty means all
	Unit         domain.Unit
	View         domain.View
	WeekdaysOnly bool
	ForceRefresh bool
}

// Result is everything a consumer needs to render one view.
type Result struct {
	Query       Query
	Jobs        []domain.Job // filtered and sorted
	Totals      map[domain.Stage]int
	Percentages map[domain.Stage]float64
	Table       domain.Table
	Diagnostics []domain.Diagnostic
	FetchedAt   time.Time
	Cached      bool
}

// Service wires the cache, fetcher, parser, classifier and aggregator.
type Service struct {
	fetcher    Fetcher
	cache      *store.Store
	classifier *stage.Classifier
	agg        *snapshot.Aggregator
	log        zerolog.Logger
	now        func() time.Time
}

// New creates a Service.
func New(fetcher Fetcher, cache *store.Store, classifier *stage.Classifier, log zerolog.Logger) *Service {
	return &Service{
		fetcher:    fetcher,
		cache:      cache,
		classifier: classifier,
		agg:        snapshot.New(classifier),
		log:        log,
		now:        time.Now,
	}
}

// SetClock replaces time.Now, used to default the date range.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// JQL builds the search query for a project key.
func JQL(project string) string {
	project = strings.TrimSpace(project)
	if project == "" {
		return jira.DefaultOrderBy
	}
	return fmt.Sprintf("project = %s %s", project, jira.DefaultOrderBy)
}

// Normalize fills defaults: the current week for a missing range and the
// chart stages for an empty stage filter.
func (s *Service) Normalize(q Query) Query {
	if q.Start.IsZero() || q.End.IsZero() {
		mon, fri := snapshot.WeekOf(s.now())
		if q.Start.IsZero() {
			q.Start = mon
		}
		if q.End.IsZero() {
			q.End = fri
		}
	}
	q.Start, q.End = domain.Day(q.Start), domain.Day(q.End)
	if len(q.Stages) == 0 {
		q.Stages = domain.ChartStages
	}
	return q
}

// GetData loads issues (from the cache when fresh) and produces the
// aggregated table with summaries. Only configuration and range errors are
// returned; everything recoverable is reported in Result.Diagnostics.
func (s *Service) GetData(ctx context.Context, q Query) (*Result, error) {
	q = s.Normalize(q)
	if q.End.Before(q.Start) {
		return nil, fmt.Errorf("%w: %s < %s", ErrInvalidRange,
			q.End.Format(time.DateOnly), q.Start.Format(time.DateOnly))
	}

	jql := JQL(q.Project)
	entry, cached, err := s.cache.Load(ctx, q.ForceRefresh, func(ctx context.Context) ([]domain.Issue, []domain.Diagnostic, error) {
		res, err := s.fetcher.FetchIssues(ctx, jql)
		return res.Issues, res.Diagnostics, err
	})
	if err != nil {
		return nil, fmt.Errorf("load issues: %w", err)
	}

	jobs, diags := s.Prepare(entry.Issues)
	jobs = FilterLocations(jobs, q.Locations)
	jobs = CreatedBy(jobs, q.End)

	table := s.agg.Aggregate(jobs, snapshot.DateRange(q.Start, q.End), q.Unit, q.Stages)
	if q.WeekdaysOnly {
		table = snapshot.WeekdaysOnly(table)
	}
	if q.View == domain.ViewDaily {
		table = snapshot.Delta(table)
	}

	totals := snapshot.Totals(jobs, q.Unit)
	SortJobs(jobs, s.classifier)

	s.log.Debug().
		Str("project", q.Project).
		Int("issues", len(entry.Issues)).
		Int("jobs", len(jobs)).
		Bool("cached", cached).
		Msg("data ready")

	return &Result{
		Query:       q,
		Jobs:        jobs,
		Totals:      totals,
		Percentages: snapshot.Percentages(totals),
		Table:       table,
		Diagnostics: append(append([]domain.Diagnostic(nil), entry.Diagnostics...), diags...),
		FetchedAt:   entry.FetchedAt,
		Cached:      cached,
	}, nil
}

// Prepare enriches issues into jobs. Summaries that fail the job-number
// format get a validation diagnostic; test numbers that cannot be parsed get
// a parse diagnostic and count as 0.
func (s *Service) Prepare(issues []domain.Issue) ([]domain.Job, []domain.Diagnostic) {
	jobs := make([]domain.Job, 0, len(issues))
	var diags []domain.Diagnostic
	now := s.now()

	for _, issue := range issues {
		history := append([]domain.StatusChange(nil), issue.History...)
		sort.SliceStable(history, func(i, j int) bool {
			return history[i].ChangedAt.Before(history[j].ChangedAt)
		})
		issue.History = history

		job := domain.Job{
			Issue:         issue,
			Valid:         jobnum.Valid(issue.Summary),
			Location:      domain.LocationFromLabels(issue.Labels),
			CreationStage: s.agg.CreationStage(issue),
			CurrentStage:  s.classifier.Determine(issue.Status),
		}

		if !job.Valid {
			diags = append(diags, domain.Diagnostic{
				Kind:     domain.DiagValidation,
				IssueKey: issue.Key,
				Text:     issue.Summary,
				Message:  "summary does not start with a job number",
				At:       now,
			})
		} else {
			n, err := jobnum.TestNumber(issue.Summary)
			if err != nil {
				diags = append(diags, domain.Diagnostic{
					Kind:     domain.DiagParse,
					IssueKey: issue.Key,
					Text:     issue.Summary,
					Message:  err.Error(),
					At:       now,
				})
			}
			job.TestNumber = n
		}

		jobs = append(jobs, job)
	}

	return jobs, diags
}

// FilterLocations keeps jobs in any of the given locations. An empty filter keeps all.
func FilterLocations(jobs []domain.Job, locations []domain.Location) []domain.Job {
	if len(locations) == 0 {
		return jobs
	}
	want := make(map[domain.Location]bool, len(locations))
	for _, l := range locations {
		want[l] = true
	}
	out := jobs[:0:0]
	for _, j := range jobs {
		if want[j.Location] {
			out = append(out, j)
		}
	}
	return out
}

// CreatedBy keeps jobs created on or before the end day. There is no lower
// bound: older jobs are part of every later snapshot.
func CreatedBy(jobs []domain.Job, end time.Time) []domain.Job {
	end = domain.Day(end)
	out := jobs[:0:0]
	for _, j := range jobs {
		if !domain.Day(j.CreatedAt).After(end) {
			out = append(out, j)
		}
	}
	return out
}

// SortJobs orders jobs by current stage, then by the classifier position of
// their status, then by creation time.
func SortJobs(jobs []domain.Job, classifier *stage.Classifier) {
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]
		if a.CurrentStage != b.CurrentStage {
			return a.CurrentStage < b.CurrentStage
		}
		pa, pb := classifier.Priority(a.Status), classifier.Priority(b.Status)
		if pa != pb {
			return pa < pb
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
