// Package embedding provides text embedding providers for retrieval.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"quorum-ai/internal/domain"
	"quorum-ai/internal/infra/config"
)

var _ domain.EmbeddingProvider = (*OllamaProvider)(nil)

const (
	defaultBaseURL    = "http://localhost:11434"
	defaultModel      = "nomic-embed-text"
	defaultDimensions = 768

	connTimeout     = 5 * time.Second
	respTimeout     = 60 * time.Second
	maxResponseBody = 32 * 1024 * 1024
)

// OllamaProvider computes embeddings through an Ollama server's /api/embed
// endpoint.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	logger     *slog.Logger
}

// Option configures an OllamaProvider.
type Option func(*OllamaProvider)

// WithDimensions overrides the reported embedding dimensionality.
func WithDimensions(d int) Option {
	return func(p *OllamaProvider) { p.dimensions = d }
}

// WithHTTPClient overrides the HTTP client, mostly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *OllamaProvider) { p.client = c }
}

// NewOllamaProvider creates an embedding provider backed by Ollama.
func NewOllamaProvider(cfg config.EmbeddingConfig, logger *slog.Logger, opts ...Option) *OllamaProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	p := &OllamaProvider{
		baseURL:    baseURL,
		model:      model,
		dimensions: defaultDimensions,
		client: &http.Client{
			Timeout: respTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connTimeout}).DialContext,
			},
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements domain.EmbeddingProvider. Texts are embedded in a single
// batch request; the result order matches the input order.
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, domain.NewDomainError("Embed", domain.ErrEmbeddingFailed, err.Error())
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, domain.NewDomainError("Embed", domain.ErrEmbeddingFailed,
			fmt.Sprintf("status %d: %s", httpResp.StatusCode, string(respBody)))
	}

	var resp embedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, domain.NewDomainError("Embed", domain.ErrEmbeddingFailed,
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings)))
	}

	p.logger.Debug("embeddings computed", "model", p.model, "count", len(texts))
	return resp.Embeddings, nil
}

// Dimensions implements domain.EmbeddingProvider.
func (p *OllamaProvider) Dimensions() int { return p.dimensions }

// Name implements domain.EmbeddingProvider.
func (p *OllamaProvider) Name() string { return "ollama" }
