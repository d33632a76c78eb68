package domain

import "time"

// Contribution is one alter's response within a phase. The response text
// may be an error placeholder when the invocation failed.
type Contribution struct {
	AlterID   int    `json:"alter_id"`
	AlterName string `json:"alter_name"`
	Response  string `json:"response"`
}

// PhaseRecord holds all contributions collected during one phase,
// in roster order.
type PhaseRecord struct {
	PhaseName     Phase          `json:"phase_name"`
	Contributions []Contribution `json:"contributions"`
}

// HistoryEntry is one line of the shared conversation history that
// accumulates across phases.
type HistoryEntry struct {
	Phase     Phase  `json:"phase"`
	AlterName string `json:"alter_name"`
	AlterID   int    `json:"alter_id"`
	Response  string `json:"response"`
}

// RoundState is the mutable working record for one orchestration request.
// It is created fresh per round, owned exclusively by that round, and
// discarded after the transcript is assembled.
type RoundState struct {
	ID                  string
	Question            string
	UseRAG              bool
	RetrievedContext    string
	AssignedTeams       []string
	ParticipatingAlters []AlterDescriptor // non-owning view, never serialized
	Phases              []PhaseRecord
	ConversationHistory []HistoryEntry
	FinalDecision       string
	StartedAt           time.Time
}

// Transcript is the externally returned, serialization-safe record of a
// round. It carries no live alter references.
type Transcript struct {
	RoundID             string         `json:"round_id"`
	Question            string         `json:"question"`
	UseRAG              bool           `json:"use_rag"`
	RetrievedContext    string         `json:"retrieved_context,omitempty"`
	AssignedTeams       []string       `json:"assigned_teams"`
	Phases              []PhaseRecord  `json:"phases"`
	ConversationHistory []HistoryEntry `json:"conversation_history"`
	FinalDecision       string         `json:"final_decision"`
	ElapsedSeconds      float64        `json:"elapsed_seconds"`
}
