package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/h0rv/jobtrack/internal/auth"
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) (string, bool) { return "", false }

func envFrom(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnv)
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), *cfg)
	assert.Equal(t, "", cfg.DefaultProject())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
jira:
  url: https://lab.atlassian.net/
  username: lab@example.com
  api_token: secret
  token_created: "2024-01-02"
  page_size: 50
  max_retries: 0
  timeout: 10s
  jql_constraints:
    - labels in (CIPP)
projects: [MTEST, LAB]
rate_limit:
  requests_per_minute: 20
cache:
  ttl: 1m
stages:
  - {status: Queued, stage: open}
  - {status: Bench, stage: testing}
log:
  level: debug
`)

	cfg, err := Load(path, noEnv)
	require.NoError(t, err)

	assert.Equal(t, "https://lab.atlassian.net", cfg.Jira.URL)
	assert.Equal(t, 50, cfg.Jira.PageSize)
	assert.Equal(t, 0, cfg.Jira.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.Jira.Timeout)
	assert.Equal(t, []string{"labels in (CIPP)"}, cfg.Jira.Constraints)
	assert.Equal(t, "ORDER BY created DESC", cfg.Jira.OrderBy)
	assert.Equal(t, 20, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 10, cfg.RateLimit.BufferPercent)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "MTEST", cfg.DefaultProject())

	jc := cfg.JiraClient()
	assert.Equal(t, "https://lab.atlassian.net", jc.BaseURL)
	assert.Equal(t, 50, jc.PageSize)

	classifier, err := cfg.Classifier()
	require.NoError(t, err)
	assert.Equal(t, domain.StageOpen, classifier.Determine("queued"))
	assert.Equal(t, domain.StageTesting, classifier.Determine("BENCH"))
	assert.Equal(t, domain.StageOther, classifier.Determine("Open"), "custom table replaces the default")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "projects: [LAB, MTEST]\n")

	cfg, err := Load(path, envFrom(map[string]string{
		EnvURL:      "https://other.atlassian.net",
		EnvProject:  "MTEST",
		EnvLogLevel: "warn",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://other.atlassian.net", cfg.Jira.URL)
	assert.Equal(t, []string{"MTEST", "LAB"}, cfg.Projects)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "jira: [unclosed\n")

	_, err := Load(path, noEnv)
	assert.ErrorContains(t, err, "parse config file")
}

func TestValidate_CollectsFieldErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jira.URL = "ftp://lab"
	cfg.Jira.PageSize = 0
	cfg.RateLimit.BufferPercent = 100
	cfg.Projects = []string{"mtest"}
	cfg.Stages = []StageMapping{{Status: "x", Stage: "Shipping"}}
	cfg.Log.Level = "loud"

	err := cfg.Validate()

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"jira.url",
		"jira.page_size",
		"rate_limit.buffer_percent",
		"projects[0]",
		"stages[0]",
		"log.level",
	}, fields)
}

func TestValidate_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Jira.Username = "lab@example.com"
	cfg.Jira.Token = "from-file"
	cfg.Jira.TokenCreated = "2024-01-02"

	creds, err := cfg.Credentials(noEnv)
	require.NoError(t, err)
	assert.Equal(t, "from-file", creds.Token)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), creds.IssuedAt)

	creds, err = cfg.Credentials(envFrom(map[string]string{
		auth.EnvUsername: "env@example.com",
		auth.EnvToken:    "from-env",
	}))
	require.NoError(t, err)
	assert.Equal(t, "from-env", creds.Token, "environment wins over the file")

	cfg.Jira.Token = ""
	_, err = cfg.Credentials(noEnv)
	assert.ErrorIs(t, err, auth.ErrNoCredentials)
}

func TestNewLogger_File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "jobtrack.log")

	log, closer, err := NewLogger("info", file)
	require.NoError(t, err)

	Component(log, "jira").Info().Msg("hello")
	log.Debug().Msg("filtered")
	closer()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cmp":"jira"`)
	assert.Contains(t, string(data), `"message":"hello"`)
	assert.NotContains(t, string(data), "filtered")
}

func TestNewLogger_BadLevel(t *testing.T) {
	_, _, err := NewLogger("loud", "")
	assert.Error(t, err)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Component(zerolog.New(&buf), "store").Info().Msg("x")
	assert.Contains(t, buf.String(), `"cmp":"store"`)
}
