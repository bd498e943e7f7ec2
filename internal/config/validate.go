package config

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/h0rv/jobtrack/internal/stage"
	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"
)

var projectKeyRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]+$`)

// Validate checks that the configuration is usable. Field errors are
// collected and returned together as criterio.FieldErrors.
func (c *Config) Validate() error {
	return criterio.ValidateStruct(
		criterio.Run("jira.url", c.Jira.URL, validURL),
		criterio.Run("jira.token_created", c.Jira.TokenCreated, validDate),
		criterio.Run("log.level", c.Log.Level, validLevel),
		c.validateLimits(),
		c.validateProjects(),
		c.validateStages(),
	)
}

func (c *Config) validateLimits() error {
	var errs criterio.FieldErrorsBuilder
	checks := []struct {
		field  string
		v      int
		lo, hi int
	}{
		{"jira.page_size", c.Jira.PageSize, 1, 1000},
		{"jira.max_retries", c.Jira.MaxRetries, 0, 10},
		{"rate_limit.requests_per_minute", c.RateLimit.RequestsPerMinute, 1, 10000},
		{"rate_limit.buffer_percent", c.RateLimit.BufferPercent, 0, 99},
	}
	for _, chk := range checks {
		if chk.v < chk.lo || chk.v > chk.hi {
			errs = errs.Append(chk.field, fmt.Errorf("must be between %d and %d, got %d", chk.lo, chk.hi, chk.v))
		}
	}
	if c.Jira.Timeout <= 0 {
		errs = errs.Append("jira.timeout", fmt.Errorf("must be positive, got %s", c.Jira.Timeout))
	}
	if c.Cache.TTL <= 0 {
		errs = errs.Append("cache.ttl", fmt.Errorf("must be positive, got %s", c.Cache.TTL))
	}
	return errs.ToError()
}

func (c *Config) validateProjects() error {
	var errs criterio.FieldErrorsBuilder
	for i, p := range c.Projects {
		if !projectKeyRe.MatchString(p) {
			errs = errs.Append(fmt.Sprintf("projects[%d]", i), fmt.Errorf("invalid project key %q", p))
		}
	}
	return errs.ToError()
}

func (c *Config) validateStages() error {
	var errs criterio.FieldErrorsBuilder
	for i, m := range c.Stages {
		if _, err := stage.ParseMapping(m.Status, m.Stage); err != nil {
			errs = errs.Append(fmt.Sprintf("stages[%d]", i), err)
		}
	}
	return errs.ToError()
}

// validURL accepts an empty value; a missing URL is reported when connecting.
func validURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func validDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return nil
}

func validLevel(s string) error {
	_, err := zerolog.ParseLevel(s)
	return err
}
