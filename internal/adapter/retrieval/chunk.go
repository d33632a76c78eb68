// Package retrieval implements document ingestion and similarity search
// backing the discussion engine's RAG context.
package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Default chunking parameters, in runes.
const (
	defaultChunkSize    = 512
	defaultChunkOverlap = 50
)

// supportedExtensions lists the file types ExtractText understands.
var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// ExtractText reads a document file and returns its plain-text content.
// Only .txt and .md files are supported; markdown is treated as plain text.
func ExtractText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return "", fmt.Errorf("unsupported file type %q", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %q is not valid UTF-8", filepath.Base(path))
	}
	return string(data), nil
}

// ChunkText splits text into overlapping fixed-size chunks. Sizes are in
// runes so multi-byte text never splits mid-character. Whitespace-only
// chunks are dropped. Zero or negative parameters fall back to defaults;
// an overlap >= size is clamped to size/4 to guarantee forward progress.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 4
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
