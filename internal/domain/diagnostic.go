package domain

import "time"

// DiagnosticKind classifies a recoverable problem found while fetching or processing.
type DiagnosticKind string

const (
	DiagConfig     DiagnosticKind = "config"
	DiagTransport  DiagnosticKind = "transport"
	DiagParse      DiagnosticKind = "parse"
	DiagValidation DiagnosticKind = "validation"
	DiagRateLimit  DiagnosticKind = "rate_limit"
)

// Diagnostic is a structured record of something that went wrong without
// stopping the pipeline.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	IssueKey string         `json:"issue_key,omitempty"`
	Text     string         `json:"text,omitempty"` // offending input, e.g. the summary
	Message  string         `json:"message"`
	At       time.Time      `json:"at"`
}

// FilterDiagnostics returns the diagnostics of the given kind.
func FilterDiagnostics(diags []Diagnostic, kind DiagnosticKind) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
