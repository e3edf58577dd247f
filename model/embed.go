package model

import (
	"context"
	"fmt"
	"sync"

	"kbchat/textutil"
)

const queryCacheSize = 256

// Embedder wraps the Ollama client with text normalization, dimension
// checking and L2 normalization of the returned vectors. Query embeddings are
// cached so repeated prompts reuse the same vector.
type Embedder struct {
	client *Client
	model  string
	dim    int

	mu    sync.Mutex
	cache map[string][]float32
	order []string
}

func NewEmbedder(client *Client, dim int) *Embedder {
	return &Embedder{
		client: client,
		model:  client.embedModel,
		dim:    dim,
		cache:  make(map[string][]float32, queryCacheSize),
	}
}

func (e *Embedder) Model() string { return e.model }

func (e *Embedder) Dimension() int { return e.dim }

// EmbedChunk returns the normalized embedding for a document chunk along with
// its original norm. Chunk embeddings bypass the query cache.
func (e *Embedder) EmbedChunk(ctx context.Context, text string) ([]float32, float64, error) {
	normalized := textutil.Normalize(text)
	if normalized == "" {
		return nil, 0, fmt.Errorf("input text must contain readable characters")
	}
	raw, err := e.client.EmbedRaw(ctx, normalized)
	if err != nil {
		return nil, 0, fmt.Errorf("requesting embedding: %w", err)
	}
	return textutil.NormalizeVector(raw, e.dim)
}

// EmbedQuery returns the normalized embedding for a user query, serving
// repeats from the cache.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	normalized := textutil.Normalize(text)
	if normalized == "" {
		return nil, fmt.Errorf("input text must contain readable characters")
	}

	e.mu.Lock()
	if cached, ok := e.cache[normalized]; ok {
		e.mu.Unlock()
		out := make([]float32, len(cached))
		copy(out, cached)
		return out, nil
	}
	e.mu.Unlock()

	raw, err := e.client.EmbedRaw(ctx, normalized)
	if err != nil {
		return nil, err
	}
	vector, _, err := textutil.NormalizeVector(raw, e.dim)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if _, ok := e.cache[normalized]; !ok {
		if len(e.order) >= queryCacheSize {
			oldest := e.order[0]
			e.order = e.order[1:]
			delete(e.cache, oldest)
		}
		e.cache[normalized] = vector
		e.order = append(e.order, normalized)
	}
	e.mu.Unlock()

	out := make([]float32, len(vector))
	copy(out, vector)
	return out, nil
}
