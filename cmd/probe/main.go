// Command probe fetches one project from a live Jira and prints what the
// tracker would see: issue count, diagnostics, statuses per stage and the
// request budget used. Handy for tuning the stage table.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/h0rv/jobtrack/internal/config"
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/h0rv/jobtrack/internal/jira"
	"github.com/h0rv/jobtrack/internal/ratelimit"
	"github.com/h0rv/jobtrack/internal/store"
	"github.com/h0rv/jobtrack/internal/tracker"
)

func main() {
	cfg, err := config.Load(config.DefaultPath(), nil)
	if err != nil {
		log.Fatal(err)
	}
	logger, closeLog, err := config.NewLogger("debug", "")
	if err != nil {
		log.Fatal(err)
	}
	defer closeLog()

	project := cfg.DefaultProject()
	if len(os.Args) > 1 {
		project = os.Args[1]
	}

	creds, err := cfg.Credentials(nil)
	if err != nil {
		log.Fatal(err)
	}
	classifier, err := cfg.Classifier()
	if err != nil {
		log.Fatal(err)
	}

	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BufferPercent,
		ratelimit.WithLogger(config.Component(logger, "ratelimit")))
	client := jira.New(cfg.JiraClient(), creds, limiter, config.Component(logger, "jira"))
	cache := store.New(cfg.Cache.TTL)

	ctx := context.Background()

	user, err := client.CheckCredentials(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Authenticated as %s\n\n", user.DisplayName)

	jql := tracker.JQL(project)
	fmt.Printf("Search: %s\n\n", client.SearchURL(jql))

	start := time.Now()
	entry, _, err := cache.Load(ctx, true, func(ctx context.Context) ([]domain.Issue, []domain.Diagnostic, error) {
		res, err := client.FetchIssues(ctx, jql)
		return res.Issues, res.Diagnostics, err
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Issues: %d in %s\n", len(entry.Issues), time.Since(start).Round(time.Millisecond))

	for _, d := range entry.Diagnostics {
		fmt.Printf("  [%s] %s %s\n", d.Kind, d.IssueKey, d.Message)
	}

	// Group by stage
	columns, err := cache.Columns(classifier.Determine)
	if err != nil {
		log.Fatal(err)
	}
	statuses := make(map[domain.Stage]map[string]int)
	for _, issue := range entry.Issues {
		s := classifier.Determine(issue.Status)
		if statuses[s] == nil {
			statuses[s] = make(map[string]int)
		}
		statuses[s][issue.Status]++
	}

	fmt.Printf("\nStages:\n")
	for _, s := range domain.AllStages {
		fmt.Printf("  %s: %d issues\n", s, len(columns[s]))
		names := make([]string, 0, len(statuses[s]))
		for name, n := range statuses[s] {
			names = append(names, fmt.Sprintf("%s (%d)", name, n))
		}
		sort.Strings(names)
		if len(names) > 0 {
			fmt.Printf("      %s\n", strings.Join(names, ", "))
		}
	}

	u := limiter.Usage()
	fmt.Printf("\nRequests: %d/%d this minute (buffer %d)\n", u.Current, u.Limit, u.Buffer)
}
