// Package config loads jobtrack configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h0rv/jobtrack/internal/auth"
	"github.com/h0rv/jobtrack/internal/jira"
	"github.com/h0rv/jobtrack/internal/ratelimit"
	"github.com/h0rv/jobtrack/internal/stage"
	"github.com/h0rv/jobtrack/internal/store"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the file is read.
const (
	EnvURL      = "JIRA_URL"
	EnvProject  = "JIRA_PROJECT"
	EnvLogLevel = "JOBTRACK_LOG_LEVEL"
)

// Config is the complete application configuration.
type Config struct {
	Jira      JiraConfig      `yaml:"jira"`
	Projects  []string        `yaml:"projects"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Stages    []StageMapping  `yaml:"stages"`
	Log       LogConfig       `yaml:"log"`
}

// JiraConfig holds the connection settings.
type JiraConfig struct {
	URL          string        `yaml:"url"`
	Username     string        `yaml:"username"`
	Token        string        `yaml:"api_token"`
	TokenCreated string        `yaml:"token_created"` // YYYY-MM-DD, enables expiry warnings
	TokenCommand []string      `yaml:"token_command"` // e.g. ["pass", "show", "jira"]
	PageSize     int           `yaml:"page_size"`
	MaxRetries   int           `yaml:"max_retries"`
	Timeout      time.Duration `yaml:"timeout"`
	Constraints  []string      `yaml:"jql_constraints"`
	OrderBy      string        `yaml:"order_by"`
}

// RateLimitConfig sizes the outbound request window.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	BufferPercent     int `yaml:"buffer_percent"`
}

// CacheConfig controls how long fetched issues are reused.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// StageMapping assigns a Jira status to a stage by display name.
type StageMapping struct {
	Status string `yaml:"status"`
	Stage  string `yaml:"stage"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Jira: JiraConfig{
			PageSize:    jira.DefaultPageSize,
			MaxRetries:  jira.DefaultMaxRetries,
			Timeout:     30 * time.Second,
			Constraints: append([]string(nil), jira.DefaultConstraints...),
			OrderBy:     jira.DefaultOrderBy,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: ratelimit.DefaultRequestsPerMinute,
			BufferPercent:     ratelimit.DefaultBufferPercent,
		},
		Cache: CacheConfig{TTL: store.DefaultTTL},
		Log:   LogConfig{Level: "info"},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/jobtrack/config.yaml or the platform equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "jobtrack", "config.yaml")
}

// Load reads configuration from path, applies environment overrides from
// lookup (os.LookupEnv when nil) and validates the result. A missing file is
// not an error; defaults are used.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.applyEnv(lookup)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.Jira.URL = v
	}
	if v, ok := lookup(EnvProject); ok && v != "" {
		projects := []string{v}
		for _, p := range c.Projects {
			if p != v {
				projects = append(projects, p)
			}
		}
		c.Projects = projects
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Jira.PageSize == 0 {
		c.Jira.PageSize = defaults.Jira.PageSize
	}
	if c.Jira.Timeout == 0 {
		c.Jira.Timeout = defaults.Jira.Timeout
	}
	if c.Jira.OrderBy == "" {
		c.Jira.OrderBy = defaults.Jira.OrderBy
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = defaults.RateLimit.RequestsPerMinute
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = defaults.Cache.TTL
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	c.Jira.URL = strings.TrimRight(strings.TrimSpace(c.Jira.URL), "/")
}

// DefaultProject returns the first configured project, or "".
func (c *Config) DefaultProject() string {
	if len(c.Projects) == 0 {
		return ""
	}
	return c.Projects[0]
}

// JiraClient returns the immutable client configuration.
func (c *Config) JiraClient() jira.Config {
	return jira.Config{
		BaseURL:     c.Jira.URL,
		PageSize:    c.Jira.PageSize,
		MaxRetries:  c.Jira.MaxRetries,
		Timeout:     c.Jira.Timeout,
		Constraints: c.Jira.Constraints,
		OrderBy:     c.Jira.OrderBy,
	}
}

// Classifier builds the stage classifier from the configured table, falling
// back to stage.DefaultMappings when none is configured.
func (c *Config) Classifier() (*stage.Classifier, error) {
	if len(c.Stages) == 0 {
		return stage.Default(), nil
	}
	mappings := make([]stage.Mapping, 0, len(c.Stages))
	for i, m := range c.Stages {
		mapping, err := stage.ParseMapping(m.Status, m.Stage)
		if err != nil {
			return nil, fmt.Errorf("stages[%d]: %w", i, err)
		}
		mappings = append(mappings, mapping)
	}
	return stage.New(mappings), nil
}

// CredentialProvider returns the provider chain: environment first, then
// the config file, then the token command.
func (c *Config) CredentialProvider(lookup func(string) (string, bool)) auth.Provider {
	chain := auth.Chain{
		auth.EnvProvider{Lookup: lookup},
		auth.StaticProvider{Creds: auth.Credentials{Username: c.Jira.Username, Token: c.Jira.Token}},
	}
	if len(c.Jira.TokenCommand) > 0 {
		chain = append(chain, auth.CommandProvider{Username: c.Jira.Username, Command: c.Jira.TokenCommand})
	}
	return chain
}

// Credentials resolves credentials and fills IssuedAt from token_created when
// the provider did not supply one.
func (c *Config) Credentials(lookup func(string) (string, bool)) (auth.Credentials, error) {
	creds, err := c.CredentialProvider(lookup).Credentials()
	if err != nil {
		return auth.Credentials{}, err
	}
	if creds.IssuedAt.IsZero() && c.Jira.TokenCreated != "" {
		issued, err := time.Parse(time.DateOnly, c.Jira.TokenCreated)
		if err != nil {
			return auth.Credentials{}, fmt.Errorf("jira.token_created: %w", err)
		}
		creds.IssuedAt = issued
	}
	return creds, nil
}
