package orchestrator

import (
	"time"

	"quorum-ai/internal/domain"
)

// assembleTranscript projects the round state to its external form,
// dropping the live alter references. Nil slices become empty so the
// JSON encoding always carries arrays.
func assembleTranscript(state *domain.RoundState) *domain.Transcript {
	transcript := &domain.Transcript{
		RoundID:             state.ID,
		Question:            state.Question,
		UseRAG:              state.UseRAG,
		RetrievedContext:    state.RetrievedContext,
		AssignedTeams:       state.AssignedTeams,
		Phases:              state.Phases,
		ConversationHistory: state.ConversationHistory,
		FinalDecision:       state.FinalDecision,
		ElapsedSeconds:      time.Since(state.StartedAt).Seconds(),
	}
	if transcript.AssignedTeams == nil {
		transcript.AssignedTeams = []string{}
	}
	if transcript.Phases == nil {
		transcript.Phases = []domain.PhaseRecord{}
	}
	if transcript.ConversationHistory == nil {
		transcript.ConversationHistory = []domain.HistoryEntry{}
	}
	return transcript
}
