package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"quorum-ai/internal/domain"
)

const moderatorSystemPrompt = "You are a helpful moderator that synthesizes a final decision."

// buildDecisionPrompt renders the whole discussion for the moderator:
// the question, context if retrieval ran, and every phase's contributions
// in order.
func buildDecisionPrompt(state *domain.RoundState) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are the Moderator for a multi-agent discussion. Review the following discussion and provide a final decision or recommendation.

User's original question: %s

`, state.Question)

	if state.RetrievedContext != "" {
		fmt.Fprintf(&b, "Available context:\n%s\n\n", state.RetrievedContext)
	}

	b.WriteString("Discussion phases:\n\n")
	for _, phase := range state.Phases {
		fmt.Fprintf(&b, "=== %s ===\n", phase.PhaseName)
		for _, contrib := range phase.Contributions {
			fmt.Fprintf(&b, "%s: %s\n\n", contrib.AlterName, contrib.Response)
		}
	}

	b.WriteString(`Based on this multi-agent discussion, provide:
1. A clear final decision or recommendation
2. Key supporting points from the discussion
3. Any remaining concerns or next steps

Keep your response concise but comprehensive.`)

	return b.String()
}

// synthesizeDecision asks the moderator provider for the final decision.
// A moderator failure is reported in-band as the decision text so the
// round still completes with a full transcript.
func (e *Engine) synthesizeDecision(ctx context.Context, state *domain.RoundState) {
	resp, err := e.moderator.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: moderatorSystemPrompt},
			{Role: domain.RoleUser, Content: buildDecisionPrompt(state)},
		},
	})
	if err != nil {
		e.logger.Error("decision synthesis failed", "round", state.ID, "error", err)
		state.FinalDecision = fmt.Sprintf("Error generating final decision: %s", err)
		return
	}
	state.FinalDecision = strings.TrimSpace(resp.Message.Content)
}
