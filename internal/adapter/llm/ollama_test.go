package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quorum-ai/internal/domain"
	"quorum-ai/internal/infra/config"
)

func TestOllamaProviderChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3" {
			t.Errorf("model = %q", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		if req.Options.Temperature != ollamaDefaultTemperature {
			t.Errorf("temperature = %v", req.Options.Temperature)
		}
		if req.Options.TopP != ollamaDefaultTopP {
			t.Errorf("top_p = %v", req.Options.TopP)
		}

		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:           "llama3",
			Response:        "A fine idea.",
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       5,
		})
	}))
	defer server.Close()

	provider := NewOllamaProvider(config.ProviderConfig{
		Name:    "ollama",
		BaseURL: server.URL,
		Model:   "llama3",
	}, newTestLogger())

	resp, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Suggest something"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "A fine idea." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 17 {
		t.Errorf("tokens = %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaProviderUnreachable(t *testing.T) {
	provider := NewOllamaProvider(config.ProviderConfig{
		Name:    "ollama",
		BaseURL: "http://127.0.0.1:1", // nothing listens here
		Model:   "llama3",
	}, newTestLogger())

	_, err := provider.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("expected connection error")
	}
}

func TestOllamaListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "llama3", "size": 1000},
				{"name": "nomic-embed-text", "size": 500},
			},
		})
	}))
	defer server.Close()

	provider := NewOllamaProvider(config.ProviderConfig{Name: "ollama", BaseURL: server.URL}, newTestLogger())

	models, err := provider.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].Name != "llama3" {
		t.Errorf("models = %+v", models)
	}
}

func TestOllamaIsHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewOllamaProvider(config.ProviderConfig{Name: "ollama", BaseURL: server.URL}, newTestLogger())
	if !provider.IsHealthy(context.Background()) {
		t.Error("expected healthy")
	}

	down := NewOllamaProvider(config.ProviderConfig{Name: "ollama", BaseURL: "http://127.0.0.1:1"}, newTestLogger())
	if down.IsHealthy(context.Background()) {
		t.Error("expected unhealthy")
	}
}

func TestFlattenMessages(t *testing.T) {
	got := flattenMessages([]domain.Message{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "ask"},
	})
	want := "sys\n\nask"
	if got != want {
		t.Errorf("flattenMessages = %q, want %q", got, want)
	}
}
