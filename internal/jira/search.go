package jira

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/h0rv/jobtrack/internal/domain"
)

// FetchResult is everything one paginated fetch produced.
type FetchResult struct {
	Issues      []domain.Issue
	Diagnostics []domain.Diagnostic
	Total       int // server-reported total of the last page received
}

// Jira timestamps look like 2024-01-05T10:00:00.000+0000.
var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	time.RFC3339Nano,
}

type searchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []rawIssue `json:"issues"`
}

type rawIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  *struct {
			Name string `json:"name"`
		} `json:"status"`
		Created string   `json:"created"`
		Labels  []string `json:"labels"`
	} `json:"fields"`
	Changelog *struct {
		Histories []struct {
			Created string `json:"created"`
			Items   []struct {
				Field      string `json:"field"`
				FromString string `json:"fromString"`
				ToString   string `json:"toString"`
			} `json:"items"`
		} `json:"histories"`
	} `json:"changelog"`
}

// Augment ANDs the configured constraints onto jql, keeping its ORDER BY
// clause (or the configured default) at the end. The caller's condition is
// parenthesized so an OR in it cannot escape the constraints.
func (c *Client) Augment(jql string) string {
	base, order := splitOrderBy(jql)
	if order == "" {
		order = c.cfg.OrderBy
	}

	var constraints []string
	for _, constraint := range c.cfg.Constraints {
		if constraint = strings.TrimSpace(constraint); constraint != "" {
			constraints = append(constraints, constraint)
		}
	}

	clauses := make([]string, 0, len(constraints)+1)
	switch {
	case base == "":
	case len(constraints) == 0:
		clauses = append(clauses, base)
	default:
		clauses = append(clauses, "("+base+")")
	}
	clauses = append(clauses, constraints...)

	query := strings.Join(clauses, " AND ")
	if order == "" {
		return query
	}
	if query == "" {
		return order
	}
	return query + " " + order
}

// FetchIssues pages through the search endpoint and returns every issue
// matching the augmented query, with changelogs expanded.
//
// Fetching is best-effort: a transport or server error ends pagination and
// the issues collected so far are returned together with a transport
// diagnostic. Only missing configuration is returned as an error.
func (c *Client) FetchIssues(ctx context.Context, jql string) (FetchResult, error) {
	if err := c.configured(); err != nil {
		return FetchResult{}, err
	}

	query := c.Augment(jql)
	log := c.log.With().Str("jql", query).Logger()

	var result FetchResult
	startAt := 0

	for {
		page, err := c.searchPage(ctx, query, startAt)
		if err != nil {
			log.Error().Err(err).Int("start_at", startAt).Int("fetched", len(result.Issues)).Msg("error fetching issues, returning partial results")
			result.Diagnostics = append(result.Diagnostics, domain.Diagnostic{
				Kind:    domain.DiagTransport,
				Message: fmt.Sprintf("fetch stopped at offset %d: %v", startAt, err),
				At:      c.now(),
			})
			break
		}

		result.Total = page.Total
		if len(page.Issues) == 0 {
			break
		}

		for _, raw := range page.Issues {
			issue, diags := c.convertIssue(raw)
			result.Diagnostics = append(result.Diagnostics, diags...)
			if issue != nil {
				result.Issues = append(result.Issues, *issue)
			}
		}

		startAt += len(page.Issues)
		log.Debug().Int("received", startAt).Int("total", page.Total).Msg("fetched page")
		if startAt >= page.Total {
			break
		}
	}

	result.Diagnostics = append(result.Diagnostics, c.limiter.DrainWarnings()...)
	log.Info().Int("issues", len(result.Issues)).Int("diagnostics", len(result.Diagnostics)).Msg("fetch complete")
	return result, nil
}

func (c *Client) searchPage(ctx context.Context, jql string, startAt int) (*searchResponse, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("startAt", strconv.Itoa(startAt))
	q.Set("maxResults", strconv.Itoa(c.cfg.PageSize))
	q.Set("expand", "changelog")
	q.Set("fields", "summary,status,created,labels")

	var resp searchResponse
	if err := c.getJSON(ctx, "search", c.apiURL("/rest/api/2/search", q), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// convertIssue maps a raw search record onto a domain.Issue. Records whose
// creation time cannot be read are dropped; unreadable history entries are
// skipped individually.
func (c *Client) convertIssue(raw rawIssue) (*domain.Issue, []domain.Diagnostic) {
	var diags []domain.Diagnostic

	created, err := parseTime(raw.Fields.Created)
	if err != nil {
		diags = append(diags, domain.Diagnostic{
			Kind:     domain.DiagParse,
			IssueKey: raw.Key,
			Text:     raw.Fields.Created,
			Message:  fmt.Sprintf("unreadable created timestamp: %v", err),
			At:       c.now(),
		})
		return nil, diags
	}

	issue := &domain.Issue{
		Key:       raw.Key,
		Summary:   raw.Fields.Summary,
		CreatedAt: created,
		Labels:    raw.Fields.Labels,
		History:   []domain.StatusChange{},
	}
	if raw.Fields.Status != nil {
		issue.Status = raw.Fields.Status.Name
	}

	if raw.Changelog != nil {
		for _, h := range raw.Changelog.Histories {
			var changedAt time.Time
			var parsed bool
			for _, item := range h.Items {
				if item.Field != "status" {
					continue
				}
				if !parsed {
					changedAt, err = parseTime(h.Created)
					if err != nil {
						diags = append(diags, domain.Diagnostic{
							Kind:     domain.DiagParse,
							IssueKey: raw.Key,
							Text:     h.Created,
							Message:  fmt.Sprintf("unreadable history timestamp: %v", err),
							At:       c.now(),
						})
						break
					}
					parsed = true
				}
				issue.History = append(issue.History, domain.StatusChange{
					ChangedAt: changedAt,
					From:      item.FromString,
					To:        item.ToString,
				})
			}
		}
		sort.SliceStable(issue.History, func(i, j int) bool {
			return issue.History[i].ChangedAt.Before(issue.History[j].ChangedAt)
		})
	}

	return issue, diags
}

func parseTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// splitOrderBy separates a trailing ORDER BY clause from a JQL query.
func splitOrderBy(jql string) (base, order string) {
	jql = strings.TrimSpace(jql)
	idx := strings.LastIndex(strings.ToUpper(jql), "ORDER BY")
	if idx < 0 {
		return jql, ""
	}
	return strings.TrimSpace(jql[:idx]), strings.TrimSpace(jql[idx:])
}
