// Package jira provides a REST client for the Jira issue search API.
// It hides pagination, rate limiting and changelog decoding behind a single
// FetchIssues call.
package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/h0rv/jobtrack/internal/auth"
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// DefaultPageSize is the number of issues requested per search page.
	DefaultPageSize = 100
	// DefaultMaxRetries is how often a 429/5xx response is retried.
	DefaultMaxRetries = 2
	// DefaultOrderBy is appended to queries that carry no ORDER BY clause.
	DefaultOrderBy = "ORDER BY created DESC"

	retryBackoff = 300 * time.Millisecond
)

// DefaultConstraints restrict searches to top-level issues carrying the CIPP label.
var DefaultConstraints = []string{"parent IS EMPTY", "labels in (CIPP)"}

var (
	// ErrNotConfigured indicates the base URL or credentials are missing.
	ErrNotConfigured = errors.New("jira is not configured")
	// ErrUnauthorized indicates the credentials were rejected.
	ErrUnauthorized = errors.New("jira rejected the credentials")
)

// TransportError describes a failed HTTP exchange with Jira.
type TransportError struct {
	Op         string // e.g. "search", "myself"
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("jira %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("jira %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Config is the immutable connection configuration.
type Config struct {
	BaseURL     string
	PageSize    int
	MaxRetries  int
	Timeout     time.Duration
	Constraints []string // JQL clauses ANDed onto every search
	OrderBy     string   // used when the caller's query has no ORDER BY
}

// Limiter gates outbound requests.
type Limiter interface {
	Wait(ctx context.Context) error
	Observe(ctx context.Context, remaining int) error
	DrainWarnings() []domain.Diagnostic
}

// Client is a Jira REST API client.
type Client struct {
	cfg     Config
	creds   auth.Credentials
	http    *http.Client
	limiter Limiter
	log     zerolog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a new Jira client. Missing configuration is reported when a
// request is attempted, not here.
func New(cfg Config, creds auth.Credentials, limiter Limiter, log zerolog.Logger) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.OrderBy == "" {
		cfg.OrderBy = DefaultOrderBy
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		cfg:     cfg,
		creds:   creds,
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		log:     log,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// User is the account behind the configured credentials.
type User struct {
	Name         string `json:"name"`
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

// CheckCredentials verifies the credentials against /myself.
// Returns ErrUnauthorized when Jira answers 401.
func (c *Client) CheckCredentials(ctx context.Context) (*User, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	var user User
	if err := c.getJSON(ctx, "myself", c.apiURL("/rest/api/2/myself", nil), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchURL returns the issue navigator URL for the augmented query.
func (c *Client) SearchURL(jql string) string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	return base + "/issues/?jql=" + url.QueryEscape(c.Augment(jql))
}

func (c *Client) configured() error {
	if strings.TrimSpace(c.cfg.BaseURL) == "" {
		return fmt.Errorf("%w: base URL is empty", ErrNotConfigured)
	}
	if c.creds.Username == "" || c.creds.Token == "" {
		return fmt.Errorf("%w: username or API token is empty", ErrNotConfigured)
	}
	return nil
}

func (c *Client) apiURL(path string, q url.Values) string {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// getJSON performs an authenticated, rate-limited GET and decodes the body into out.
// 429 and 5xx responses are retried with exponential backoff.
func (c *Client) getJSON(ctx context.Context, op, u string, out any) error {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, retryBackoff*time.Duration(1<<(attempt-1))); err != nil {
				return &TransportError{Op: op, Err: err}
			}
		}

		retry, err := c.do(ctx, op, u, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return err
		}
		c.log.Debug().Err(err).Int("attempt", attempt+1).Str("op", op).Msg("retrying jira request")
	}

	return lastErr
}

// do runs one request. The bool reports whether the failure is retryable.
func (c *Client) do(ctx context.Context, op, u string, out any) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, &TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.creds.Username, c.creds.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return ctx.Err() == nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if remaining, convErr := strconv.Atoi(v); convErr == nil {
			if err := c.limiter.Observe(ctx, remaining); err != nil {
				return false, &TransportError{Op: op, Err: err}
			}
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return false, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: ErrUnauthorized}
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retry, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, &TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
