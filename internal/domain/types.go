// Package domain defines the normalized domain types for job tracking.
// These types represent the core concepts independent of the Jira REST API structure.
package domain

import (
	"strings"
	"time"
)

// Issue represents a single tracker issue as fetched from Jira.
// Issues are treated as immutable once a fetch cycle has produced them.
type Issue struct {
	Key       string         // Issue key (e.g., "MTEST-42")
	Summary   string         // Raw summary text, source of the job number
	Status    string         // Current status name
	CreatedAt time.Time      // Creation timestamp
	Labels    []string       // Label names
	History   []StatusChange // Status transitions, empty when no changelog was returned
}

// StatusChange represents one status transition from the issue changelog.
type StatusChange struct {
	ChangedAt time.Time
	From      string
	To        string
}

// Stage is the coarse workflow bucket an issue is in.
type Stage int

const (
	StageOpen Stage = iota
	StageSamplePreparation
	StageTesting
	StageReport
	StageOther
)

// AllStages lists every stage in display order.
var AllStages = []Stage{StageOpen, StageSamplePreparation, StageTesting, StageReport, StageOther}

// ChartStages are the stages plotted when no stage filter is given.
var ChartStages = []Stage{StageOpen, StageSamplePreparation, StageTesting, StageReport}

var stageNames = map[Stage]string{
	StageOpen:              "Open",
	StageSamplePreparation: "Sample Preparation",
	StageTesting:           "Testing",
	StageReport:            "Report",
	StageOther:             "Other",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "Other"
}

// MarshalText renders the stage by its display name.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseStage resolves a stage by display name, ignoring case, spaces and dashes.
// "sample-preparation", "Sample Preparation" and "samplepreparation" all match.
func ParseStage(name string) (Stage, bool) {
	want := normalizeName(name)
	for s, n := range stageNames {
		if normalizeName(n) == want {
			return s, true
		}
	}
	return StageOther, false
}

// Location is the lab an issue belongs to, derived from its labels.
type Location string

const (
	LocationToronto  Location = "Toronto"
	LocationMontreal Location = "Montreal"
	LocationEdmonton Location = "Edmonton"
)

// AllLocations lists every location in display order.
var AllLocations = []Location{LocationToronto, LocationMontreal, LocationEdmonton}

// LocationFromLabels infers the location: YEG means Edmonton, YUL means Montreal,
// anything else defaults to Toronto.
func LocationFromLabels(labels []string) Location {
	var yul bool
	for _, l := range labels {
		switch strings.ToUpper(strings.TrimSpace(l)) {
		case "YEG":
			return LocationEdmonton
		case "YUL":
			yul = true
		}
	}
	if yul {
		return LocationMontreal
	}
	return LocationToronto
}

// ParseLocation resolves a location by name, ignoring case.
func ParseLocation(name string) (Location, bool) {
	for _, l := range AllLocations {
		if strings.EqualFold(string(l), strings.TrimSpace(name)) {
			return l, true
		}
	}
	return "", false
}

// Unit selects what a snapshot counts.
type Unit int

const (
	UnitCount      Unit = iota // one per job ("Job Number")
	UnitTestNumber             // the test count parsed from the summary ("Test Number")
)

func (u Unit) String() string {
	if u == UnitTestNumber {
		return "Test Number"
	}
	return "Job Number"
}

// ParseUnit accepts "count", "job", "job-number", "test", "test-number" and the display names.
func ParseUnit(name string) (Unit, bool) {
	switch normalizeName(name) {
	case "count", "job", "jobs", "jobnumber":
		return UnitCount, true
	case "test", "tests", "testnumber":
		return UnitTestNumber, true
	}
	return UnitCount, false
}

// View selects between the cumulative snapshot and its day-over-day delta.
type View int

const (
	ViewCumulative View = iota
	ViewDaily
)

func (v View) String() string {
	if v == ViewDaily {
		return "Daily"
	}
	return "Cumulative"
}

// ParseView accepts "cumulative" or "daily".
func ParseView(name string) (View, bool) {
	switch normalizeName(name) {
	case "cumulative", "snapshot":
		return ViewCumulative, true
	case "daily", "delta":
		return ViewDaily, true
	}
	return ViewCumulative, false
}

// Job is an Issue enriched with everything derived from it during processing.
type Job struct {
	Issue
	Valid         bool  // Summary matches the job number format
	TestNumber    int   // Test count parsed from the summary, 0 when invalid
	Location      Location
	CreationStage Stage // Stage the issue started in
	CurrentStage  Stage // Stage of the current status
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}
