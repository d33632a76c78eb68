package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"quorum-ai/internal/domain"
)

// scriptedProvider returns canned responses keyed by phase name found in
// the prompt, or a fixed reply.
type scriptedProvider struct {
	name  string
	reply string
	err   error
	// prompts records every user prompt seen, for assertions.
	prompts []string
}

func (p *scriptedProvider) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	for _, m := range req.Messages {
		if m.Role == domain.RoleUser {
			p.prompts = append(p.prompts, m.Content)
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &domain.ChatResponse{
		Message: domain.Message{Role: domain.RoleAssistant, Content: p.reply},
	}, nil
}

func (p *scriptedProvider) Name() string { return p.name }

func testAlter(provider domain.LLMProvider) *Alter {
	return NewAlter(domain.AlterDescriptor{
		ID:           7,
		Name:         "Backend Team Specialist 7",
		Priority:     domain.PriorityHigh,
		Competencies: "Databases and caching",
	}, provider)
}

func TestBuildPromptIdentity(t *testing.T) {
	alter := testAlter(nil)
	prompt := alter.BuildPrompt(domain.PhaseBrainstorm, "How to scale reads?", "", nil)

	for _, want := range []string{
		"You are Backend Team Specialist 7, an expert with the following competencies: Databases and caching",
		"Your priority level: High",
		"Current phase: Brainstorm",
		"Phase instruction: Generate creative ideas",
		"User's question/request: How to scale reads?",
		"under 300 words",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "Previous discussion") {
		t.Error("empty history should not render a discussion section")
	}
}

func TestBuildPromptUnknownPhase(t *testing.T) {
	alter := testAlter(nil)
	prompt := alter.BuildPrompt(domain.Phase("Retrospective"), "q", "", nil)

	if !strings.Contains(prompt, "Contribute your expertise to the discussion.") {
		t.Error("unknown phase should use the generic instruction")
	}
}

func TestBuildPromptHistoryWindow(t *testing.T) {
	alter := testAlter(nil)

	var history []domain.HistoryEntry
	for i := 0; i < 8; i++ {
		history = append(history, domain.HistoryEntry{
			Phase:     domain.PhaseBrainstorm,
			AlterName: "Speaker",
			AlterID:   i,
			Response:  strings.Repeat("word ", 10) + string(rune('a'+i)),
		})
	}

	prompt := alter.BuildPrompt(domain.PhaseVote, "q", "", history)
	if !strings.Contains(prompt, "Previous discussion:") {
		t.Fatal("history section missing")
	}
	// Entries 0..2 fall outside the 5-entry window.
	if strings.Contains(prompt, "word a") || !strings.Contains(prompt, "word h") {
		t.Error("history window should keep only the last 5 entries")
	}
	if got := strings.Count(prompt, "[Brainstorm] Speaker:"); got != 5 {
		t.Errorf("rendered %d history lines, want 5", got)
	}
}

func TestBuildPromptHistoryTruncation(t *testing.T) {
	alter := testAlter(nil)
	long := strings.Repeat("x", 300)

	prompt := alter.BuildPrompt(domain.PhaseVote, "q", "", []domain.HistoryEntry{
		{Phase: domain.PhaseBrainstorm, AlterName: "Verbose", Response: long},
	})

	if !strings.Contains(prompt, strings.Repeat("x", 200)+"...") {
		t.Error("history entry not truncated to 200 runes")
	}
	if strings.Contains(prompt, strings.Repeat("x", 201)) {
		t.Error("history entry exceeds 200 runes")
	}
}

func TestBuildPromptIncludesContext(t *testing.T) {
	alter := testAlter(nil)
	prompt := alter.BuildPrompt(domain.PhaseBrainstorm, "q", "[RAG Context]\n- Chunk 1: \"notes\" [score: 0.812]\n", nil)

	if !strings.Contains(prompt, "[RAG Context]") {
		t.Error("retrieved context missing from prompt")
	}
}

func TestRespondTrimsWhitespace(t *testing.T) {
	provider := &scriptedProvider{name: "stub", reply: "  padded answer \n"}
	alter := testAlter(provider)

	got, err := alter.Respond(context.Background(), domain.PhaseBrainstorm, "q", "", nil)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if got != "padded answer" {
		t.Errorf("response = %q", got)
	}
}

func TestRespondPropagatesError(t *testing.T) {
	provider := &scriptedProvider{name: "stub", err: errors.New("connection refused")}
	alter := testAlter(provider)

	_, err := alter.Respond(context.Background(), domain.PhaseBrainstorm, "q", "", nil)
	if err == nil {
		t.Fatal("expected error")
	}
}
