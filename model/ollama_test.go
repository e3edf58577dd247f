package model

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbchat/config"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.OllamaConfig{
		BaseURL:         server.URL,
		ChatModel:       "llama3",
		EmbedModel:      "nomic-embed-text",
		Timeout:         2 * time.Second,
		GenerateTimeout: 2 * time.Second,
		ConnectTimeout:  time.Second,
		HealthTimeout:   time.Second,
		RetryAttempts:   3,
		RetryBackoff:    time.Millisecond,
		TopP:            1,
	})
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "ok"})
	}))

	text, err := client.Generate(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))

	_, err := client.Generate(context.Background(), "hola")
	require.Error(t, err)

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGenerateFallsBackToChatEndpoint(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			http.NotFound(w, r)
		case "/api/chat":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.NotNil(t, payload["messages"])
			json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]any{"content": "  desde chat  "},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	text, err := client.Generate(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, "desde chat", text)
}

func TestGenerateSurfacesErrorPayload(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "model not loaded"},
		})
	}))

	_, err := client.Generate(context.Background(), "hola")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestGenerateEmptyDoneResponseIsError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"done": true, "response": ""})
	}))

	_, err := client.Generate(context.Background(), "hola")
	require.Error(t, err)

	var reqErr *RequestError
	assert.True(t, errors.As(err, &reqErr))
}

func TestEmbedRawFallsBackToLegacyEndpoint(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embed":
			http.NotFound(w, r)
		case "/api/embeddings":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "hola", payload["prompt"])
			json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.1, 0.2}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	embedding, err := client.EmbedRaw(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, embedding)
}

func TestEmbedRawReadsBatchShape(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float64{{1, 2, 3}},
		})
	}))

	embedding, err := client.EmbedRaw(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, embedding)
}

func TestResolveResponseText(t *testing.T) {
	tests := map[string]struct {
		data     map[string]any
		expected string
	}{
		"message content": {
			data:     map[string]any{"message": map[string]any{"content": "  Hola mundo  "}},
			expected: "Hola mundo",
		},
		"response fallback": {
			data:     map[string]any{"response": "  fallback text  "},
			expected: "fallback text",
		},
		"choices": {
			data: map[string]any{
				"choices": []any{
					map[string]any{"message": map[string]any{"content": "  choice content  "}},
				},
			},
			expected: "choice content",
		},
		"generated_text": {
			data:     map[string]any{"generated_text": "alt"},
			expected: "alt",
		},
		"empty": {
			data:     map[string]any{"done": true},
			expected: "",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveResponseText(tt.data))
		})
	}
}

func TestCheckHealthUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client := NewClient(config.OllamaConfig{
		BaseURL:       server.URL,
		ChatModel:     "llama3",
		EmbedModel:    "nomic-embed-text",
		HealthTimeout: time.Second,
		RetryAttempts: 1,
	})
	server.Close()

	health := client.CheckHealth(context.Background())
	assert.False(t, health.Reachable)
	assert.Nil(t, health.Embedding)
	assert.Nil(t, health.Chat)
}

func TestCheckHealthProbesEndpoints(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte("Ollama is running"))
		case "/api/embeddings":
			json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{0.1}})
		case "/api/chat":
			http.Error(w, "model not found", http.StatusNotFound)
		}
	}))

	health := client.CheckHealth(context.Background())
	assert.True(t, health.Reachable)
	require.NotNil(t, health.Embedding)
	assert.True(t, health.Embedding.OK)
	require.NotNil(t, health.Chat)
	assert.False(t, health.Chat.OK)
	assert.Equal(t, http.StatusNotFound, health.Chat.StatusCode)
}
