// Package auth resolves Jira API credentials.
// Providers are tried in order; the first that yields a complete set wins.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Environment variables read by EnvProvider.
const (
	EnvUsername    = "JIRA_USERNAME"
	EnvToken       = "JIRA_API_TOKEN"
	EnvTokenIssued = "JIRA_TOKEN_ISSUED" // YYYY-MM-DD
)

// Token age policy. Atlassian API tokens expire after TokenLifetime.
const (
	TokenLifetime = 90 * 24 * time.Hour
	WarnDays      = 7
	ForceDays     = 1
)

// ErrNoCredentials is returned when no provider yields credentials.
var ErrNoCredentials = errors.New("no Jira credentials found")

// Credentials authenticate against the Jira REST API with basic auth.
type Credentials struct {
	Username string
	Token    string
	IssuedAt time.Time // zero when unknown
}

// Complete reports whether both username and token are set.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Token != ""
}

// Provider obtains credentials from a single source.
type Provider interface {
	Credentials() (Credentials, error)
}

// StaticProvider returns fixed credentials, typically from the config file.
type StaticProvider struct {
	Creds Credentials
}

// Credentials returns the configured credentials or an error if incomplete.
func (s StaticProvider) Credentials() (Credentials, error) {
	if !s.Creds.Complete() {
		return Credentials{}, errors.New("config: username or api_token missing")
	}
	return s.Creds, nil
}

// EnvProvider reads JIRA_USERNAME, JIRA_API_TOKEN and JIRA_TOKEN_ISSUED.
type EnvProvider struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(key string) (string, bool)
}

// Credentials reads the environment.
func (e EnvProvider) Credentials() (Credentials, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	user, _ := lookup(EnvUsername)
	token, _ := lookup(EnvToken)
	if user == "" || token == "" {
		return Credentials{}, fmt.Errorf("%s or %s not set", EnvUsername, EnvToken)
	}

	creds := Credentials{Username: user, Token: token}
	if issued, ok := lookup(EnvTokenIssued); ok && issued != "" {
		t, err := time.Parse(time.DateOnly, issued)
		if err != nil {
			return Credentials{}, fmt.Errorf("%s: %w", EnvTokenIssued, err)
		}
		creds.IssuedAt = t
	}
	return creds, nil
}

// CommandProvider runs an external command (a password manager, a keychain
// helper) whose trimmed stdout is the API token.
type CommandProvider struct {
	Username string
	Command  []string
}

// Credentials runs the command.
func (c CommandProvider) Credentials() (Credentials, error) {
	if len(c.Command) == 0 {
		return Credentials{}, errors.New("token command not configured")
	}
	if c.Username == "" {
		return Credentials{}, errors.New("token command requires a username")
	}

	cmd := exec.Command(c.Command[0], c.Command[1:]...)
	output, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return Credentials{}, fmt.Errorf("%s not found in PATH", c.Command[0])
		}
		return Credentials{}, fmt.Errorf("token command failed: %w", err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return Credentials{}, errors.New("token command returned an empty token")
	}
	return Credentials{Username: c.Username, Token: token}, nil
}

// Chain tries each provider in order.
type Chain []Provider

// Credentials returns the first complete set of credentials. If every
// provider fails the errors are joined under ErrNoCredentials.
func (ch Chain) Credentials() (Credentials, error) {
	errs := []error{ErrNoCredentials}
	for _, p := range ch {
		creds, err := p.Credentials()
		if err == nil && creds.Complete() {
			return creds, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return Credentials{}, errors.Join(errs...)
}

// Age classifies how close a token is to expiry.
type Age int

const (
	AgeUnknown Age = iota // issue date not recorded
	AgeOK
	AgeExpiringSoon // within WarnDays
	AgeExpired      // within ForceDays or past the lifetime
)

func (a Age) String() string {
	switch a {
	case AgeOK:
		return "ok"
	case AgeExpiringSoon:
		return "expiring soon"
	case AgeExpired:
		return "expired"
	}
	return "unknown"
}

// CheckAge returns the token age class and the whole days left before expiry.
func CheckAge(issuedAt, now time.Time) (Age, int) {
	if issuedAt.IsZero() {
		return AgeUnknown, 0
	}
	left := int(issuedAt.Add(TokenLifetime).Sub(now).Hours() / 24)
	switch {
	case left <= ForceDays:
		return AgeExpired, left
	case left <= WarnDays:
		return AgeExpiringSoon, left
	}
	return AgeOK, left
}
