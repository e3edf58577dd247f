package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbchat/config"
	"kbchat/model"
	"kbchat/types"
)

type captureStore struct {
	mu     sync.Mutex
	chunks map[string][]types.Chunk
}

func (s *captureStore) ReplaceDocumentChunks(ctx context.Context, filepath string, chunks []types.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chunks == nil {
		s.chunks = make(map[string][]types.Chunk)
	}
	s.chunks[filepath] = chunks
	return nil
}

func (s *captureStore) SearchSimilar(ctx context.Context, embedding []float32, topK int, sourcePrefixes []string) ([]types.Chunk, error) {
	return nil, nil
}

func (s *captureStore) ChunksByFilepaths(ctx context.Context, filepaths []string) ([]types.Chunk, error) {
	return nil, nil
}

func (s *captureStore) TextsWithKeywords(ctx context.Context, keywords []string, maxResults int) ([]string, error) {
	return nil, nil
}

func (s *captureStore) SaveMessage(ctx context.Context, msg types.ChatMessage) error { return nil }

func (s *captureStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]types.ChatMessage, error) {
	return nil, nil
}

func (s *captureStore) ListConversationMessages(ctx context.Context, conversationID string) ([]types.ChatMessage, error) {
	return nil, nil
}

func (s *captureStore) UpdateMessageMetadata(ctx context.Context, messageID int64, update types.MessageMetadataUpdate) (*types.ChatMessage, error) {
	return nil, nil
}

func (s *captureStore) EnsureConversation(ctx context.Context, conversationID string) error {
	return nil
}

func (s *captureStore) CreateLead(ctx context.Context, lead types.Lead) (int64, error) { return 0, nil }

func (s *captureStore) SaveConversationLead(ctx context.Context, lead types.ConversationLead) error {
	return nil
}

func testEmbedder(t *testing.T, dim int) *model.Embedder {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vector := make([]float64, dim)
		for i := range vector {
			vector[i] = float64(i + 1)
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{vector}})
	}))
	t.Cleanup(server.Close)

	client := model.NewClient(config.OllamaConfig{
		BaseURL:       server.URL,
		ChatModel:     "llama3",
		EmbedModel:    "nomic-embed-text",
		Timeout:       time.Second,
		RetryAttempts: 1,
	})
	return model.NewEmbedder(client, dim)
}

func TestRunIngestsKnowledgeBase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "faq"), 0o755))
	files := map[string]string{
		"cursos.md":    "# Cursos\n\nOfrecemos cursos de estructuras y de instalaciones.",
		"faq/pagos.md": "Aceptamos transferencias y tarjetas.",
		"empty.md":     "   \n  ",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	store := &captureStore{}
	svc, err := New(store, testEmbedder(t, 3), config.LoaderConfig{
		KnowledgeBaseDir: dir,
		ChunkSize:        500,
		ChunkOverlap:     50,
		Workers:          2,
	}, "1.0")
	require.NoError(t, err)
	defer svc.Release()

	var doneFiles int
	var mu sync.Mutex
	svc.OnFileDone = func(result FileResult) {
		mu.Lock()
		doneFiles++
		mu.Unlock()
	}

	summary, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.Chunks)
	assert.Equal(t, 3, doneFiles)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Contains(t, store.chunks, "cursos.md")
	chunk := store.chunks["cursos.md"][0]
	assert.Equal(t, 0, chunk.ChunkIndex)
	assert.NotEmpty(t, chunk.ChunkID)
	assert.Equal(t, "cursos.md", chunk.Source)
	assert.Equal(t, "nomic-embed-text", chunk.EmbeddingModel)
	assert.Equal(t, 3, chunk.EmbeddingDim)
	assert.Equal(t, "1.0", chunk.EmbeddingVersion)
	assert.Len(t, chunk.Embedding, 3)
	assert.Greater(t, chunk.EmbeddingNorm, 0.0)
}

func TestRunFailsOnMissingDirectory(t *testing.T) {
	store := &captureStore{}
	svc, err := New(store, testEmbedder(t, 3), config.LoaderConfig{
		KnowledgeBaseDir: filepath.Join(t.TempDir(), "missing"),
		ChunkSize:        500,
		ChunkOverlap:     50,
		Workers:          1,
	}, "1.0")
	require.NoError(t, err)
	defer svc.Release()

	_, err = svc.Run(context.Background())
	assert.Error(t, err)
}
