// Package stage maps raw Jira status names onto workflow stages.
package stage

import (
	"fmt"
	"strings"

	"github.com/h0rv/jobtrack/internal/domain"
)

// Mapping binds one status name to a stage.
type Mapping struct {
	Status string
	Stage  domain.Stage
}

// DefaultMappings is the canonical status table. Statuses missing from it
// classify as Other.
var DefaultMappings = []Mapping{
	{Status: "open", Stage: domain.StageOpen},
	{Status: "sample prep", Stage: domain.StageSamplePreparation},
	{Status: "sample preparation", Stage: domain.StageSamplePreparation},
	{Status: "testing", Stage: domain.StageTesting},
	{Status: "report", Stage: domain.StageReport},
	{Status: "quotation", Stage: domain.StageOther},
	{Status: "in progress", Stage: domain.StageOther},
	{Status: "review", Stage: domain.StageOther},
	{Status: "reported", Stage: domain.StageOther},
	{Status: "invoiced", Stage: domain.StageOther},
	{Status: "on hold", Stage: domain.StageOther},
	{Status: "cancelled", Stage: domain.StageOther},
	{Status: "other", Stage: domain.StageOther},
}

// Classifier is a case-insensitive, total status -> stage lookup.
// It is safe for concurrent use once constructed.
type Classifier struct {
	stages   map[string]domain.Stage
	priority map[string]int
}

// New builds a classifier from an ordered mapping table. When a status
// appears more than once the first entry wins.
func New(mappings []Mapping) *Classifier {
	c := &Classifier{
		stages:   make(map[string]domain.Stage, len(mappings)),
		priority: make(map[string]int, len(mappings)),
	}
	for i, m := range mappings {
		key := normalize(m.Status)
		if _, dup := c.stages[key]; dup {
			continue
		}
		c.stages[key] = m.Stage
		c.priority[key] = i
	}
	return c
}

// Default returns a classifier over DefaultMappings.
func Default() *Classifier {
	return New(DefaultMappings)
}

// Determine returns the stage for a status. Unknown statuses are Other.
func (c *Classifier) Determine(status string) domain.Stage {
	if s, ok := c.stages[normalize(status)]; ok {
		return s
	}
	return domain.StageOther
}

// Priority returns the position of a status in the mapping table.
// Unknown statuses sort after every known one.
func (c *Classifier) Priority(status string) int {
	if p, ok := c.priority[normalize(status)]; ok {
		return p
	}
	return len(c.priority)
}

// ParseMapping builds a mapping from a status and a stage display name.
func ParseMapping(status, stageName string) (Mapping, error) {
	if strings.TrimSpace(status) == "" {
		return Mapping{}, fmt.Errorf("status is required")
	}
	st, ok := domain.ParseStage(stageName)
	if !ok {
		return Mapping{}, fmt.Errorf("unknown stage %q", stageName)
	}
	return Mapping{Status: status, Stage: st}, nil
}

func normalize(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
