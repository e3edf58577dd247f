package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"kbchat/config"
)

// RequestError represents a failed HTTP call against the Ollama API.
type RequestError struct {
	Endpoint   string
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ollama %s error (status=%d): %s", e.Endpoint, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("ollama %s error: %s", e.Endpoint, e.Detail)
}

// Client talks to the Ollama HTTP API with retries, timeouts and endpoint
// fallback for older server versions.
type Client struct {
	baseURL    string
	chatModel  string
	embedModel string

	timeout         time.Duration
	generateTimeout time.Duration
	healthTimeout   time.Duration
	retryAttempts   int
	retryBackoff    time.Duration
	temperature     float64
	topP            float64

	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg config.OllamaConfig) *Client {
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		chatModel:       cfg.ChatModel,
		embedModel:      cfg.EmbedModel,
		timeout:         cfg.Timeout,
		generateTimeout: cfg.GenerateTimeout,
		healthTimeout:   cfg.HealthTimeout,
		retryAttempts:   cfg.RetryAttempts,
		retryBackoff:    cfg.RetryBackoff,
		temperature:     cfg.Temperature,
		topP:            cfg.TopP,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
			},
		},
		logger: slog.Default(),
	}
}

func (c *Client) url(endpoint string) string {
	return c.baseURL + endpoint
}

func shouldRetry(statusCode int) bool {
	return statusCode == 0 || statusCode >= 500
}

// post sends one payload to an Ollama endpoint, retrying transport failures
// and 5xx responses with a linearly growing backoff.
func (c *Client) post(ctx context.Context, endpoint string, payload any, timeout time.Duration) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	var lastErr *RequestError
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		data, reqErr := c.postOnce(ctx, endpoint, body, timeout)
		if reqErr == nil {
			return data, nil
		}
		lastErr = reqErr
		c.logger.Warn("ollama request failed",
			"endpoint", endpoint, "status", reqErr.StatusCode, "detail", reqErr.Detail)
		if !shouldRetry(reqErr.StatusCode) {
			break
		}
		if attempt < c.retryAttempts {
			backoff := c.retryBackoff * time.Duration(attempt)
			c.logger.Debug("retrying ollama request",
				"endpoint", endpoint, "attempt", attempt, "of", c.retryAttempts, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	c.logger.Error("ollama request exhausted retries",
		"endpoint", endpoint, "attempts", c.retryAttempts, "detail", lastErr.Detail)
	return nil, lastErr
}

func (c *Client) postOnce(ctx context.Context, endpoint string, body []byte, timeout time.Duration) (map[string]any, *RequestError) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url(endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Endpoint: endpoint, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Endpoint: endpoint, Detail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Endpoint: endpoint, Detail: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(respBody)),
		}
	}

	var data map[string]any
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, &RequestError{Endpoint: endpoint, Detail: fmt.Sprintf("decode response: %v", err)}
	}
	return data, nil
}

// postWithFallback tries the primary endpoint and falls back to the alternate
// one when the server answers 404, which happens across Ollama versions that
// renamed their API routes.
func (c *Client) postWithFallback(ctx context.Context, primary, fallback string, primaryPayload, fallbackPayload any, timeout time.Duration) (map[string]any, string, error) {
	data, err := c.post(ctx, primary, primaryPayload, timeout)
	if err == nil {
		return data, primary, nil
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound {
		c.logger.Info("ollama endpoint not found, trying fallback",
			"endpoint", primary, "fallback", fallback)
		data, err = c.post(ctx, fallback, fallbackPayload, timeout)
		if err == nil {
			return data, fallback, nil
		}
		return nil, fallback, err
	}
	return nil, primary, err
}

// EmbedRaw requests an embedding vector for the text. It prefers the newer
// /api/embed route and falls back to /api/embeddings.
func (c *Client) EmbedRaw(ctx context.Context, text string) ([]float32, error) {
	data, endpoint, err := c.postWithFallback(ctx,
		"/api/embed", "/api/embeddings",
		map[string]any{"model": c.embedModel, "input": text},
		map[string]any{"model": c.embedModel, "prompt": text},
		c.timeout,
	)
	if err != nil {
		return nil, err
	}

	embedding := extractEmbedding(data)
	if embedding == nil {
		return nil, &RequestError{
			Endpoint: endpoint,
			Detail:   fmt.Sprintf("response missing embedding: %s", payloadBrief(data)),
		}
	}
	return embedding, nil
}

func extractEmbedding(data map[string]any) []float32 {
	// /api/embed shape: {"embeddings": [[...]]}
	if raw, ok := data["embeddings"].([]any); ok && len(raw) > 0 {
		if first, ok := raw[0].([]any); ok {
			return toFloat32s(first)
		}
	}
	// /api/embeddings shape: {"embedding": [...]}
	if raw, ok := data["embedding"].([]any); ok {
		return toFloat32s(raw)
	}
	return nil
}

func toFloat32s(values []any) []float32 {
	out := make([]float32, 0, len(values))
	for _, v := range values {
		f, ok := v.(float64)
		if !ok {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}

// Generate produces a completion for the prompt using the chat model. Per the
// deployed Ollama versions it tries /api/generate first and falls back to
// /api/chat when the route is missing.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	generatePayload := map[string]any{
		"model":  c.chatModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.temperature,
			"top_p":       c.topP,
		},
	}
	chatPayload := map[string]any{
		"model":       c.chatModel,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": c.temperature,
		"top_p":       c.topP,
		"stream":      false,
	}

	data, endpoint, err := c.postWithFallback(ctx,
		"/api/generate", "/api/chat",
		generatePayload, chatPayload,
		c.generateTimeout,
	)
	if err != nil {
		return "", err
	}

	if errValue, ok := data["error"]; ok {
		detail := ""
		if m, ok := errValue.(map[string]any); ok {
			detail, _ = m["message"].(string)
		} else {
			detail = fmt.Sprint(errValue)
		}
		if detail == "" {
			detail = fmt.Sprintf("ollama error payload: %s", payloadBrief(data))
		}
		return "", &RequestError{Endpoint: endpoint, Detail: detail}
	}

	text := resolveResponseText(data)
	if text == "" {
		brief := payloadBrief(data)
		c.logger.Warn("ollama response missing text payload", "endpoint", endpoint, "payload", brief)
		if done, _ := data["done"].(bool); done {
			return "", &RequestError{
				Endpoint: endpoint,
				Detail:   fmt.Sprintf("ollama replied without text: %s", brief),
			}
		}
		return "", nil
	}
	return text, nil
}

// resolveResponseText digs the generated text out of the response, covering
// the payload shapes the various Ollama builds return.
func resolveResponseText(data map[string]any) string {
	if content := extractMessageContent(data); content != "" {
		return content
	}
	return extractGeneratedText(data)
}

func extractMessageContent(data map[string]any) string {
	message, ok := data["message"].(map[string]any)
	if !ok {
		return ""
	}
	if content, ok := message["content"].(string); ok {
		return strings.TrimSpace(content)
	}
	return ""
}

func extractGeneratedText(data map[string]any) string {
	for _, key := range []string{"response", "generated_text", "text", "completion", "result"} {
		if value, ok := data[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	choices, ok := data["choices"].([]any)
	if !ok {
		return ""
	}
	for _, raw := range choices {
		choice, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if message, ok := choice["message"].(map[string]any); ok {
			if content, ok := message["content"].(string); ok && strings.TrimSpace(content) != "" {
				return strings.TrimSpace(content)
			}
		}
		for _, field := range []string{"content", "text", "message"} {
			if content, ok := choice[field].(string); ok && strings.TrimSpace(content) != "" {
				return strings.TrimSpace(content)
			}
		}
	}
	return ""
}

func payloadBrief(data map[string]any) string {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprint(data)
	}
	return string(encoded)
}
