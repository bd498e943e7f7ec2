// Package tui provides Bubble Tea models for the interactive TUI.
package tui

import (
	"github.com/h0rv/jobtrack/internal/domain"
	"github.com/h0rv/jobtrack/internal/tracker"
)

// ProjectSelectedMsg is emitted when the user selects a project.
type ProjectSelectedMsg struct {
	Project string
}

// ErrorMsg is emitted when an unrecoverable error occurs.
type ErrorMsg struct {
	Err error
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}

// Internal messages for screen transitions and data loading.
type (
	// dataLoadedMsg answers a load of query; answers for any other query are stale.
	dataLoadedMsg struct {
		query  tracker.Query
		result *tracker.Result
		err    error
	}

	// refreshTickMsg belongs to the chart generation that scheduled it.
	refreshTickMsg struct {
		gen int
	}

	openJobsMsg struct {
		result *tracker.Result
	}

	openDiagnosticsMsg struct {
		diagnostics []domain.Diagnostic
	}

	closeOverlayMsg struct{}

	changeProjectMsg struct{}
)
