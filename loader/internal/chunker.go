package internal

import (
	"fmt"
	"path"
	"strings"
)

// ShortFormChunkSize is used for FAQ-style sources where one answer should
// stay inside one chunk.
const ShortFormChunkSize = 200

type Chunker struct {
	size    int
	overlap int
}

func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap cannot be negative")
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into overlapping word windows. The window advances by
// size-overlap words; when overlap swallows the whole window the step falls
// back to the full size so the loop always terminates.
func (c *Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.size - c.overlap
	if step <= 0 {
		step = c.size
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// IsShortForm reports whether the source path holds short-form content
// (FAQ entries, summaries, the routing table) that should be chunked small.
func IsShortForm(relativePath string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(relativePath, "\\", "/"))
	base := path.Base(normalized)
	if strings.Contains(normalized, "/faq/") || strings.HasPrefix(normalized, "faq/") {
		return true
	}
	if strings.HasPrefix(base, "faq_") && strings.HasSuffix(base, ".md") {
		return true
	}
	if strings.HasSuffix(base, "_summary.md") {
		return true
	}
	return base == "routing.md"
}
