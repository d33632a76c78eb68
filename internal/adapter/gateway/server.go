// Package gateway exposes the discussion engine over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quorum-ai/internal/domain"
	"quorum-ai/internal/infra/config"
	"quorum-ai/internal/infra/metrics"
	"quorum-ai/internal/infra/middleware"
)

// maxQuestionLen bounds the accepted question length, in runes.
const maxQuestionLen = 2000

// maxUploadBytes bounds a single multipart upload request.
const maxUploadBytes = 32 << 20

// Orchestrator runs discussion rounds.
type Orchestrator interface {
	RunRound(ctx context.Context, question string, useRAG bool) (*domain.Transcript, error)
}

// Ingestor accepts uploaded documents into the retrieval store.
type Ingestor interface {
	IngestFile(ctx context.Context, path string) (int, error)
}

// HealthChecker reports whether the local model backend is reachable.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// Server is the HTTP boundary of the service.
type Server struct {
	engine    Orchestrator
	ingestor  Ingestor
	health    HealthChecker
	uploadDir string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	registry  *prometheus.Registry
	startedAt time.Time
}

// Options configures a Server.
type Options struct {
	Engine   Orchestrator
	Ingestor Ingestor // nil disables /upload
	Health   HealthChecker
	Config   config.ServerConfig
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// NewServer wires the handlers and middleware into a chi router.
func NewServer(opts Options) *Server {
	return &Server{
		engine:    opts.Engine,
		ingestor:  opts.Ingestor,
		health:    opts.Health,
		uploadDir: opts.Config.UploadDir,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		registry:  opts.Registry,
		startedAt: time.Now(),
	}
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler(ctx context.Context, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.SecurityHeaders)
	if cfg.RequestsPerMin > 0 {
		r.Use(middleware.RateLimit(ctx, middleware.RateLimitConfig{
			RequestsPerMin: cfg.RequestsPerMin,
			BurstSize:      cfg.Burst,
			TrustedProxies: cfg.TrustedProxies,
		}))
	}

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/orchestrate", s.handleOrchestrate)
	r.Post("/upload", s.handleUpload)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return r
}

type orchestrateRequest struct {
	Question string `json:"question"`
	UseRAG   *bool  `json:"use_rag"`
}

type orchestrateResponse struct {
	Status     string             `json:"status"`
	Transcript *domain.Transcript `json:"transcript"`
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var req orchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.writeError(w, http.StatusBadRequest, "Question cannot be empty.")
		return
	}
	if len([]rune(req.Question)) > maxQuestionLen {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("Question exceeds %d characters.", maxQuestionLen))
		return
	}

	// RAG defaults to on, matching the documented request shape.
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	transcript, err := s.engine.RunRound(r.Context(), req.Question, useRAG)
	if err != nil {
		s.logger.Error("orchestration failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("Orchestration failed: %s", err))
		return
	}

	s.writeJSON(w, http.StatusOK, orchestrateResponse{
		Status:     "success",
		Transcript: transcript,
	})
}

type uploadResponse struct {
	Message string   `json:"message"`
	Files   []string `json:"files"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.ingestor == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Document retrieval is disabled.")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeError(w, http.StatusBadRequest, "No files were provided.")
		return
	}

	var ingested []string
	for _, header := range files {
		name, err := s.saveAndIngest(r.Context(), header)
		if err != nil {
			s.logger.Error("upload failed", "file", header.Filename, "error", err)
			s.writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to ingest %s: %s", header.Filename, err))
			return
		}
		ingested = append(ingested, name)
		s.metrics.UploadsTotal.Inc()
	}

	s.writeJSON(w, http.StatusOK, uploadResponse{
		Message: fmt.Sprintf("Successfully uploaded and ingested %d files.", len(ingested)),
		Files:   ingested,
	})
}

// saveAndIngest persists one uploaded file under the upload directory and
// feeds it to the retrieval store. The saved file is removed again if
// ingestion fails.
func (s *Server) saveAndIngest(ctx context.Context, header *multipart.FileHeader) (string, error) {
	// Strip any path components a client may have sent.
	safeName := filepath.Base(header.Filename)
	if safeName == "." || safeName == string(filepath.Separator) {
		return "", errors.New("invalid file name")
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(s.uploadDir, safeName)

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}

	if _, err := s.ingestor.IngestFile(ctx, path); err != nil {
		os.Remove(path)
		return "", err
	}
	return header.Filename, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	modelBackend := "unknown"
	if s.health != nil {
		if s.health.IsHealthy(r.Context()) {
			modelBackend = "reachable"
		} else {
			modelBackend = "unreachable"
			status = "degraded"
		}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":        status,
		"model_backend": modelBackend,
		"uptime":        time.Since(s.startedAt).String(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Quorum Orchestrator Service",
		"endpoints": map[string]string{
			"/orchestrate": "Run a multi-agent orchestrated discussion",
			"/upload":      "Upload documents for retrieval ingestion",
			"/health":      "Health check",
			"/metrics":     "Prometheus metrics",
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
