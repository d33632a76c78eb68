package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"quorum-ai/internal/domain"
	"quorum-ai/internal/infra/config"
)

var _ domain.Retriever = (*Store)(nil)

// Store implements domain.Retriever backed by SQLite. Chunks and their
// embeddings persist across restarts; similarity search runs against an
// in-memory index that is lazily loaded on the first query and updated
// incrementally on ingest.
type Store struct {
	db       *sql.DB
	embedder domain.EmbeddingProvider
	logger   *slog.Logger

	chunkSize    int
	chunkOverlap int

	mu     sync.RWMutex
	index  []indexEntry
	loaded bool
}

type indexEntry struct {
	chunk     string
	embedding []float32
}

// NewStore opens (or creates) the chunk database at dbPath, runs migrations,
// and returns a ready Store.
func NewStore(dbPath string, embedder domain.EmbeddingProvider, cfg config.RetrievalConfig, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", domain.ErrVectorStore, err)
	}

	// SQLite write safety: single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: pragma: %v", domain.ErrVectorStore, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", domain.ErrVectorStore, err)
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	chunkOverlap := cfg.ChunkOverlap
	if chunkOverlap <= 0 {
		chunkOverlap = defaultChunkOverlap
	}

	return &Store{
		db:           db,
		embedder:     embedder,
		logger:       logger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS chunks (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			source     TEXT NOT NULL,
			content    TEXT NOT NULL,
			embedding  BLOB NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// IngestFile extracts, chunks, embeds and stores a single document.
// Returns the number of chunks stored.
func (s *Store) IngestFile(ctx context.Context, path string) (int, error) {
	text, err := ExtractText(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrVectorStore, err)
	}
	return s.Ingest(ctx, path, text)
}

// Ingest chunks text, embeds all chunks in one batch, and stores them
// under the given source label. Prior chunks from the same source are
// replaced so re-uploading a document does not duplicate its content.
func (s *Store) Ingest(ctx context.Context, source, text string) (int, error) {
	chunks := ChunkText(text, s.chunkSize, s.chunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: embedding count mismatch", domain.ErrVectorStore)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx: %v", domain.ErrVectorStore, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source = ?", source); err != nil {
		return 0, fmt.Errorf("%w: clear source: %v", domain.ErrVectorStore, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (source, content, embedding, created_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("%w: prepare: %v", domain.ErrVectorStore, err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, source, chunk, float32ToBytes(vectors[i]), now); err != nil {
			return 0, fmt.Errorf("%w: insert chunk: %v", domain.ErrVectorStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", domain.ErrVectorStore, err)
	}

	// Rebuild the in-memory index on next query rather than merging: a
	// source replacement may have removed entries we cannot identify here.
	s.mu.Lock()
	s.loaded = false
	s.index = nil
	s.mu.Unlock()

	s.logger.Info("document ingested", "source", source, "chunks", len(chunks))
	return len(chunks), nil
}

// Retrieve implements domain.Retriever. The query is embedded and matched
// against all stored chunks by cosine similarity; the k best are returned
// in descending score order.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		k = 3
	}

	if err := s.loadIndex(ctx); err != nil {
		return nil, err
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.NewDomainError("Retrieve", domain.ErrVectorSearch, "empty query embedding")
	}
	queryVec := vectors[0]

	s.mu.RLock()
	scored := make([]domain.ScoredChunk, 0, len(s.index))
	for _, entry := range s.index {
		sim := cosineSimilarity(queryVec, entry.embedding)
		if sim <= 0 {
			continue
		}
		scored = append(scored, domain.ScoredChunk{Chunk: entry.chunk, Score: float64(sim)})
	}
	s.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// Count reports the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", domain.ErrVectorStore, err)
	}
	return n, nil
}

// loadIndex populates the in-memory index from the database. Called on
// the first query after startup or an ingest; subsequent calls are no-ops.
func (s *Store) loadIndex(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT content, embedding FROM chunks")
	if err != nil {
		return fmt.Errorf("%w: load index: %v", domain.ErrVectorSearch, err)
	}
	defer rows.Close()

	var index []indexEntry
	for rows.Next() {
		var content string
		var blob []byte
		if err := rows.Scan(&content, &blob); err != nil {
			continue
		}
		emb := bytesToFloat32(blob)
		if emb == nil {
			continue
		}
		index = append(index, indexEntry{chunk: content, embedding: emb})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: load index: %v", domain.ErrVectorSearch, err)
	}

	s.mu.Lock()
	s.index = index
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug("retrieval index loaded", "chunks", len(index))
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB)))
	if denom == 0 {
		return 0
	}
	result := dot / denom
	if math.IsNaN(float64(result)) || math.IsInf(float64(result), 0) {
		return 0
	}
	return result
}

// float32ToBytes encodes a vector as little-endian bytes for BLOB storage.
func float32ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32 converts little-endian bytes back to a float32 slice.
func bytesToFloat32(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
