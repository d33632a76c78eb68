package domain

import "fmt"

// Priority is an alter's importance tier.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the known tiers.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// AlterDescriptor is the immutable record of one discussion participant.
// Descriptors are constructed once at engine start and never mutated.
type AlterDescriptor struct {
	ID           int      `json:"id"           yaml:"id"`
	Name         string   `json:"name"         yaml:"name"`
	Priority     Priority `json:"priority"     yaml:"priority"`
	Competencies string   `json:"competencies" yaml:"competencies"`
	Provider     string   `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// DefaultName returns the generated display name for an alter without one.
func DefaultName(id int) string {
	return fmt.Sprintf("Alter %d", id)
}

// Team is a named grouping of alters sharing a descriptive theme,
// used for coarse routing of questions.
type Team struct {
	Description string `json:"description" yaml:"description"`
	Alters      []int  `json:"alters"      yaml:"alters"`
}

// TeamRegistry maps team identifiers to their definitions. Loaded once
// from configuration and read-only for the lifetime of the engine.
type TeamRegistry map[string]Team
