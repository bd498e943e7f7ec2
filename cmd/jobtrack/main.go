package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/jobtrack/internal/auth"
	"github.com/h0rv/jobtrack/internal/config"
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/h0rv/jobtrack/internal/jira"
	"github.com/h0rv/jobtrack/internal/ratelimit"
	"github.com/h0rv/jobtrack/internal/store"
	"github.com/h0rv/jobtrack/internal/tracker"
	"github.com/h0rv/jobtrack/internal/tui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFlag   string
	logLevelFlag string
	logFileFlag  string

	// Query flags
	projectFlag  string
	startFlag    string
	endFlag      string
	stageFlags   []string
	locationFlag []string
	unitFlag     string
	viewFlag     string
	weekdaysFlag bool
	refreshFlag  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "jobtrack",
		Short: "Track lab jobs in Jira by workflow stage",
		Long: `jobtrack polls a Jira project, classifies every issue into a workflow
stage and charts how many jobs sat in each stage on each day.

Authentication:
  1. Environment: JIRA_USERNAME and JIRA_API_TOKEN
  2. Config file: jira.username and jira.api_token
  3. Token command: jira.token_command, e.g. ["pass", "show", "jira"]

Set JIRA_TOKEN_ISSUED or jira.token_created (YYYY-MM-DD) to get warned
before the 90 day token expiry.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFlag, "config", config.DefaultPath(), "Path to the config file")
	pf.StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error). Overrides the config file.")
	pf.StringVar(&logFileFlag, "log-file", "", "Write JSON logs to this file. Overrides the config file.")

	addQueryFlags(rootCmd)

	reportCmd := newReportCmd()
	addQueryFlags(reportCmd)
	jobsCmd := newJobsCmd()
	addQueryFlags(jobsCmd)

	rootCmd.AddCommand(reportCmd, jobsCmd, newCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func addQueryFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&projectFlag, "project", "", "Jira project key. Defaults to JIRA_PROJECT or the first configured project.")
	f.StringVar(&startFlag, "start", "", "First day (YYYY-MM-DD). Defaults to this week's Monday.")
	f.StringVar(&endFlag, "end", "", "Last day (YYYY-MM-DD). Defaults to this week's Friday.")
	f.StringSliceVar(&stageFlags, "stage", nil, "Stages to include (open, sample-preparation, testing, report, other)")
	f.StringSliceVar(&locationFlag, "location", nil, "Locations to include (toronto, montreal, edmonton)")
	f.StringVar(&unitFlag, "unit", "count", "What to count: count or test-number")
	f.StringVar(&viewFlag, "view", "cumulative", "cumulative or daily")
	f.BoolVar(&weekdaysFlag, "weekdays", false, "Drop Saturdays and Sundays from the table")
	f.BoolVar(&refreshFlag, "refresh", false, "Bypass the cache")
}

// app holds everything wired from the configuration.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	closeLog func()
	creds    auth.Credentials
	limiter  *ratelimit.Limiter
	client   *jira.Client
	cache    *store.Store
	service  *tracker.Service
}

// newApp loads the configuration and wires the client, cache and service.
// When quiet is set and no log file is configured, logging is discarded.
func newApp(quiet bool) (*app, error) {
	cfg, err := config.Load(configFlag, nil)
	if err != nil {
		return nil, err
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	if logFileFlag != "" {
		cfg.Log.File = logFileFlag
	}

	a := &app{cfg: cfg, log: zerolog.Nop(), closeLog: func() {}}
	if !quiet || cfg.Log.File != "" {
		a.log, a.closeLog, err = config.NewLogger(cfg.Log.Level, cfg.Log.File)
		if err != nil {
			return nil, err
		}
	}

	classifier, err := cfg.Classifier()
	if err != nil {
		a.closeLog()
		return nil, err
	}

	// Missing credentials surface as jira.ErrNotConfigured on first use.
	creds, err := cfg.Credentials(nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("no credentials")
	}
	a.creds = creds

	a.limiter = ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BufferPercent,
		ratelimit.WithLogger(config.Component(a.log, "ratelimit")))
	a.client = jira.New(cfg.JiraClient(), creds, a.limiter, config.Component(a.log, "jira"))
	a.cache = store.New(cfg.Cache.TTL)
	a.service = tracker.New(a.client, a.cache, classifier, config.Component(a.log, "tracker"))

	return a, nil
}

// checkTokenAge warns on stderr when the token is close to expiry and
// refuses to run once it is expired.
func (a *app) checkTokenAge() error {
	age, left := auth.CheckAge(a.creds.IssuedAt, time.Now())
	switch age {
	case auth.AgeExpired:
		return fmt.Errorf("API token expires in %d days: create a new token and update jira.token_created", left)
	case auth.AgeExpiringSoon:
		fmt.Fprintf(os.Stderr, "Warning: API token expires in %d days\n", left)
	}
	return nil
}

// query builds a tracker query from the command flags.
func (a *app) query() (tracker.Query, error) {
	q := tracker.Query{
		Project:      projectFlag,
		WeekdaysOnly: weekdaysFlag,
		ForceRefresh: refreshFlag,
	}
	if q.Project == "" {
		q.Project = a.cfg.DefaultProject()
	}

	var err error
	if q.Start, err = parseDay("--start", startFlag); err != nil {
		return q, err
	}
	if q.End, err = parseDay("--end", endFlag); err != nil {
		return q, err
	}

	for _, name := range stageFlags {
		s, ok := domain.ParseStage(name)
		if !ok {
			return q, fmt.Errorf("--stage: unknown stage %q", name)
		}
		q.Stages = append(q.Stages, s)
	}
	for _, name := range locationFlag {
		l, ok := domain.ParseLocation(name)
		if !ok {
			return q, fmt.Errorf("--location: unknown location %q", name)
		}
		q.Locations = append(q.Locations, l)
	}

	unit, ok := domain.ParseUnit(unitFlag)
	if !ok {
		return q, fmt.Errorf("--unit: unknown unit %q", unitFlag)
	}
	q.Unit = unit

	view, ok := domain.ParseView(viewFlag)
	if !ok {
		return q, fmt.Errorf("--view: unknown view %q", viewFlag)
	}
	q.View = view

	return q, nil
}

func parseDay(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: expected YYYY-MM-DD: %w", flag, err)
	}
	return t, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runTUI(cmd *cobra.Command, args []string) error {
	// The alt screen owns the terminal, so only file logging is allowed.
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.closeLog()

	if err := a.checkTokenAge(); err != nil {
		return err
	}

	q, err := a.query()
	if err != nil {
		return err
	}
	if projectFlag == "" {
		// Let the picker choose when several projects are configured.
		q.Project = ""
	}

	ctx, cancel := signalContext()
	defer cancel()

	model := tui.NewAppModel(ctx, a.service, tui.Options{
		Projects:     a.cfg.Projects,
		Query:        q,
		RefreshEvery: a.cache.TTL(),
		SearchURL:    a.client.SearchURL,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("program error: %w", err)
	}

	return nil
}
