package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/h0rv/jobtrack/internal/auth"
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/h0rv/jobtrack/internal/jira"
	"github.com/h0rv/jobtrack/internal/tracker"
	"github.com/spf13/cobra"
)

var jsonFlag bool

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the per-stage table, totals and diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := loadResult()
			if err != nil {
				return err
			}
			if jsonFlag {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			writeReport(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of text")
	return cmd
}

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List jobs sorted by stage and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := loadResult()
			if err != nil {
				return err
			}
			writeJobs(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate Jira credentials and report the token age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.closeLog()

			ctx, cancel := signalContext()
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Jira:     %s\n", a.cfg.Jira.URL)

			user, err := a.client.CheckCredentials(ctx)
			if err != nil {
				if errors.Is(err, jira.ErrUnauthorized) {
					return fmt.Errorf("credentials rejected for %s: %w", a.creds.Username, err)
				}
				return err
			}
			fmt.Fprintf(out, "User:     %s (%s)\n", user.DisplayName, a.creds.Username)

			age, left := auth.CheckAge(a.creds.IssuedAt, time.Now())
			switch age {
			case auth.AgeUnknown:
				fmt.Fprintln(out, "Token:    issue date unknown, set jira.token_created to track expiry")
			default:
				expires := a.creds.IssuedAt.Add(auth.TokenLifetime)
				fmt.Fprintf(out, "Token:    %s, expires %s (%d days left)\n", age, humanize.Time(expires), left)
			}

			u := a.limiter.Usage()
			fmt.Fprintf(out, "Requests: %d of %d in the last minute\n", u.Current, u.Limit)
			return nil
		},
	}
}

// loadResult runs one GetData with the query flags.
func loadResult() (*tracker.Result, error) {
	a, err := newApp(false)
	if err != nil {
		return nil, err
	}
	defer a.closeLog()

	if err := a.checkTokenAge(); err != nil {
		return nil, err
	}

	q, err := a.query()
	if err != nil {
		return nil, err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return a.service.GetData(ctx, q)
}

type jsonRow struct {
	Date   string               `json:"date"`
	Counts map[domain.Stage]int `json:"counts"`
}

type jsonReport struct {
	Project     string                   `json:"project"`
	Start       string                   `json:"start"`
	End         string                   `json:"end"`
	Unit        string                   `json:"unit"`
	View        string                   `json:"view"`
	Stages      []domain.Stage           `json:"stages"`
	Rows        []jsonRow                `json:"rows"`
	Totals      map[domain.Stage]int     `json:"totals"`
	Percentages map[domain.Stage]float64 `json:"percentages"`
	Jobs        int                      `json:"jobs"`
	Diagnostics []domain.Diagnostic      `json:"diagnostics"`
	FetchedAt   time.Time                `json:"fetched_at"`
	Cached      bool                     `json:"cached"`
}

func writeJSON(w io.Writer, res *tracker.Result) error {
	out := jsonReport{
		Project:     res.Query.Project,
		Start:       res.Query.Start.Format(time.DateOnly),
		End:         res.Query.End.Format(time.DateOnly),
		Unit:        res.Query.Unit.String(),
		View:        res.Query.View.String(),
		Stages:      res.Table.Stages,
		Rows:        make([]jsonRow, 0, len(res.Table.Rows)),
		Totals:      res.Totals,
		Percentages: res.Percentages,
		Jobs:        len(res.Jobs),
		Diagnostics: res.Diagnostics,
		FetchedAt:   res.FetchedAt,
		Cached:      res.Cached,
	}
	if out.Diagnostics == nil {
		out.Diagnostics = []domain.Diagnostic{}
	}
	for _, r := range res.Table.Rows {
		out.Rows = append(out.Rows, jsonRow{Date: r.Date.Format(time.DateOnly), Counts: r.Counts})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeReport(w io.Writer, res *tracker.Result) {
	project := res.Query.Project
	if project == "" {
		project = "all projects"
	}
	fmt.Fprintf(w, "%s  %s to %s  %s, %s\n\n", project,
		res.Query.Start.Format(time.DateOnly), res.Query.End.Format(time.DateOnly),
		res.Query.Unit, res.Query.View)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"Date"}
	for _, s := range res.Table.Stages {
		header = append(header, s.String())
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, r := range res.Table.Rows {
		cells := []string{r.Date.Format("Mon 2006-01-02")}
		for _, s := range res.Table.Stages {
			cells = append(cells, fmt.Sprint(r.Count(s)))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	_ = tw.Flush()

	fmt.Fprintln(w, "\nCurrent totals:")
	for _, s := range domain.AllStages {
		fmt.Fprintf(w, "  %-20s %6d  %5.1f%%\n", s, res.Totals[s], res.Percentages[s])
	}

	status := "fetched " + humanize.Time(res.FetchedAt)
	if res.Cached {
		status += " (cached)"
	}
	fmt.Fprintf(w, "\n%d jobs, %s\n", len(res.Jobs), status)

	writeDiagnostics(w, res.Diagnostics)
}

func writeJobs(w io.Writer, res *tracker.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTAGE\tSTATUS\tLOCATION\tTESTS\tCREATED\tSUMMARY")
	for _, j := range res.Jobs {
		tests := fmt.Sprint(j.TestNumber)
		if !j.Valid {
			tests = "!"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			j.Key, j.CurrentStage, j.Status, j.Location, tests,
			j.CreatedAt.Format(time.DateOnly), j.Summary)
	}
	_ = tw.Flush()

	writeDiagnostics(w, domain.FilterDiagnostics(res.Diagnostics, domain.DiagValidation))
}

func writeDiagnostics(w io.Writer, diags []domain.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d diagnostics:\n", len(diags))
	for _, d := range diags {
		line := fmt.Sprintf("  [%s]", d.Kind)
		if d.IssueKey != "" {
			line += " " + d.IssueKey
		}
		line += " " + d.Message
		if d.Text != "" {
			line += fmt.Sprintf(" (%q)", d.Text)
		}
		fmt.Fprintln(w, line)
	}
}
