package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"quorum-ai/internal/domain"
	"quorum-ai/internal/infra/config"
)

// wordEmbedder maps texts onto a tiny fixed vocabulary so similarity is
// predictable: texts sharing words get high cosine similarity.
type wordEmbedder struct {
	vocab []string
}

func newWordEmbedder() *wordEmbedder {
	return &wordEmbedder{vocab: []string{"database", "cache", "network", "frontend", "deploy"}}
}

func (e *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(e.vocab))
		lower := strings.ToLower(text)
		for j, word := range e.vocab {
			vec[j] = float32(strings.Count(lower, word))
		}
		// Avoid zero vectors for out-of-vocabulary text.
		vec = append(vec, 0.01)
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *wordEmbedder) Dimensions() int { return len(e.vocab) + 1 }
func (e *wordEmbedder) Name() string    { return "word" }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(
		filepath.Join(t.TempDir(), "chunks.db"),
		newWordEmbedder(),
		config.RetrievalConfig{ChunkSize: 64, ChunkOverlap: 8},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreIngestAndRetrieve(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.Ingest(ctx, "infra.txt", "The database handles writes. The cache sits in front of the database.")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n == 0 {
		t.Fatal("no chunks stored")
	}

	if _, err := store.Ingest(ctx, "ui.txt", "The frontend renders pages."); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	results, err := store.Retrieve(ctx, "how does the database work", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if !strings.Contains(results[0].Chunk, "database") {
		t.Errorf("top chunk = %q, want database chunk", results[0].Chunk)
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %v", results[0].Score)
	}
}

func TestStoreRetrieveOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Ingest(ctx, "a.txt", "database database database")
	store.Ingest(ctx, "b.txt", "deploy pipeline")

	results, err := store.Retrieve(ctx, "database", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending score order at %d", i)
		}
	}
}

func TestStoreReingestReplacesSource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	store.Ingest(ctx, "doc.txt", "cache layer notes")
	store.Ingest(ctx, "doc.txt", "network layer notes")

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (re-ingest should replace)", count)
	}

	results, err := store.Retrieve(ctx, "network", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, r := range results {
		if strings.Contains(r.Chunk, "cache layer") {
			t.Errorf("stale chunk survived re-ingest: %q", r.Chunk)
		}
	}
}

func TestStoreEmptyRetrieve(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Retrieve(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "chunks.db")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.RetrievalConfig{ChunkSize: 64, ChunkOverlap: 8}

	store, err := NewStore(dbPath, newWordEmbedder(), cfg, log)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Ingest(context.Background(), "doc.txt", "deploy scripts live here"); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	store.Close()

	reopened, err := NewStore(dbPath, newWordEmbedder(), cfg, log)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	results, err := reopened.Retrieve(context.Background(), "deploy", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 || !strings.Contains(results[0].Chunk, "deploy") {
		t.Errorf("results = %+v", results)
	}
}

func TestStoreIngestFile(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("# Cache\n\nThe cache fronts the network."), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := store.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	if n == 0 {
		t.Fatal("no chunks from file")
	}
}

func TestStoreIngestFileUnsupported(t *testing.T) {
	store := newTestStore(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.docx")
	if err := os.WriteFile(path, []byte("binary-ish"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := store.IngestFile(context.Background(), path)
	if !errors.Is(err, domain.ErrVectorStore) {
		t.Errorf("err = %v, want ErrVectorStore", err)
	}
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("err = %v", err)
	}
}
