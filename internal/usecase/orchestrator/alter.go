// Package orchestrator runs multi-agent discussion rounds: team
// assignment, the four-phase state machine, failure isolation, and
// final decision synthesis.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"quorum-ai/internal/domain"
)

const alterSystemPrompt = "You are a helpful expert."

// historyWindow is how many trailing history entries each prompt carries.
const historyWindow = 5

// historyTruncate is the per-entry response excerpt length, in runes.
const historyTruncate = 200

// Alter is a live discussion participant: an immutable descriptor bound
// to the LLM provider that speaks for it.
type Alter struct {
	Descriptor domain.AlterDescriptor
	provider   domain.LLMProvider
}

// NewAlter binds a descriptor to its provider.
func NewAlter(desc domain.AlterDescriptor, provider domain.LLMProvider) *Alter {
	return &Alter{Descriptor: desc, provider: provider}
}

// BuildPrompt renders the full per-phase prompt for this alter: identity,
// phase instruction, the user's question, retrieved context if any, and a
// window of recent conversation history.
func (a *Alter) BuildPrompt(phase domain.Phase, question, context string, history []domain.HistoryEntry) string {
	var historyText string
	if len(history) > 0 {
		var b strings.Builder
		b.WriteString("\n\nPrevious discussion:\n")
		start := 0
		if len(history) > historyWindow {
			start = len(history) - historyWindow
		}
		for _, entry := range history[start:] {
			fmt.Fprintf(&b, "[%s] %s: %s...\n", entry.Phase, entry.AlterName, truncateRunes(entry.Response, historyTruncate))
		}
		historyText = b.String()
	}

	return fmt.Sprintf(`You are %s, an expert with the following competencies: %s

Your priority level: %s

Current phase: %s
Phase instruction: %s

User's question/request: %s

%s
%s

Based on your expertise and the current phase, provide your contribution to the discussion. Be specific, actionable, and draw from your competencies. Keep your response focused and under 300 words.`,
		a.Descriptor.Name,
		a.Descriptor.Competencies,
		a.Descriptor.Priority,
		phase,
		phase.Instruction(),
		question,
		context,
		historyText,
	)
}

// Respond invokes the alter's provider for one phase and returns the raw
// response text.
func (a *Alter) Respond(ctx context.Context, phase domain.Phase, question, ragContext string, history []domain.HistoryEntry) (string, error) {
	prompt := a.BuildPrompt(phase, question, ragContext, history)

	resp, err := a.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: alterSystemPrompt},
			{Role: domain.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
