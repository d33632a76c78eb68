package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"quorum-ai/internal/adapter/embedding"
	"quorum-ai/internal/adapter/gateway"
	"quorum-ai/internal/adapter/llm"
	"quorum-ai/internal/adapter/retrieval"
	"quorum-ai/internal/domain"
	"quorum-ai/internal/infra/config"
	"quorum-ai/internal/infra/logger"
	"quorum-ai/internal/infra/metrics"
	"quorum-ai/internal/infra/tracer"
	"quorum-ai/internal/usecase/orchestrator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// 2. Logger & Tracer
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	// 3. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// 4. LLM providers
	providers, err := initProviders(cfg, log)
	if err != nil {
		return fmt.Errorf("llm: %w", err)
	}

	// 5. Retrieval
	var retriever domain.Retriever
	var ingestor gateway.Ingestor
	if cfg.Retrieval.Enabled {
		store, err := initRetrieval(cfg, log)
		if err != nil {
			return fmt.Errorf("retrieval: %w", err)
		}
		defer store.Close()
		retriever = store
		ingestor = store
	}

	// 6. Engine
	engine, err := orchestrator.NewEngine(orchestrator.Options{
		Alters:          cfg.Panel.Alters,
		Teams:           cfg.Panel.TeamRegistry(),
		DefaultProvider: providers.alterDefault,
		Moderator:       providers.moderator,
		Providers:       providers.registry,
		Retriever:       retriever,
		TopK:            cfg.Retrieval.TopK,
		Logger:          log,
		Metrics:         m,
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	log.Info("engine ready", "alters", engine.AlterCount())

	// 7. HTTP server
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := gateway.NewServer(gateway.Options{
		Engine:   engine,
		Ingestor: ingestor,
		Health:   providers.local,
		Config:   cfg.Server,
		Logger:   log,
		Metrics:  m,
		Registry: registry,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(ctx, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// providerSet is the wired LLM side of the service.
type providerSet struct {
	registry     *llm.Registry
	alterDefault domain.LLMProvider
	moderator    domain.LLMProvider
	local        *llm.OllamaProvider
}

// initProviders builds every configured provider, wraps remote ones in a
// circuit breaker when enabled, and resolves the alter default and the
// moderator.
func initProviders(cfg *config.Config, log *slog.Logger) (*providerSet, error) {
	set := &providerSet{registry: llm.NewRegistry()}

	for _, pc := range cfg.LLM.Providers {
		switch pc.Type {
		case "ollama":
			ollama := llm.NewOllamaProvider(pc, log)
			if set.local == nil {
				set.local = ollama
			}
			if err := set.registry.Register(llm.ClassLocal, ollama); err != nil {
				return nil, err
			}
		case "openai":
			var provider domain.LLMProvider = llm.NewOpenAIProvider(pc, log)
			if cfg.LLM.CircuitBreaker.Enabled {
				provider = llm.NewCircuitBreakerProvider(provider, cfg.LLM.CircuitBreaker, log)
			}
			if err := set.registry.Register(llm.ClassRemote, provider); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown provider type %q", pc.Type)
		}
	}

	alterClass := llm.ClassLocal
	if cfg.LLM.AlterProvider == "remote" {
		alterClass = llm.ClassRemote
	}
	alterDefault, err := set.registry.Default(alterClass)
	if err != nil {
		return nil, fmt.Errorf("alter_provider %q: %w", cfg.LLM.AlterProvider, err)
	}
	set.alterDefault = alterDefault

	if cfg.LLM.Moderator != "" {
		set.moderator, err = set.registry.Get(cfg.LLM.Moderator)
	} else {
		set.moderator, err = set.registry.Default(llm.ClassRemote)
	}
	if err != nil {
		return nil, fmt.Errorf("moderator: %w", err)
	}

	return set, nil
}

// initRetrieval opens the chunk store and walks the data directory so
// pre-existing documents are available on the first round.
func initRetrieval(cfg *config.Config, log *slog.Logger) (*retrieval.Store, error) {
	embedder := domain.EmbeddingProvider(embedding.NewOllamaProvider(cfg.Retrieval.Embedding, log))
	if cfg.Retrieval.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedProvider(embedder, cfg.Retrieval.Embedding.CacheSize)
	}

	dataDir := cfg.Retrieval.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	store, err := retrieval.NewStore(filepath.Join(dataDir, "chunks.db"), embedder, cfg.Retrieval, log)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("scan data dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".txt" && ext != ".md" {
			continue
		}
		path := filepath.Join(dataDir, entry.Name())
		if _, err := store.IngestFile(context.Background(), path); err != nil {
			log.Warn("skipping document", "file", entry.Name(), "error", err)
		}
	}

	return store, nil
}
