package model

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type ProbeResult struct {
	Endpoint   string `json:"endpoint"`
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code,omitempty"`
	Detail     string `json:"detail"`
}

type Health struct {
	Reachable bool         `json:"reachable"`
	Detail    string       `json:"detail"`
	Embedding *ProbeResult `json:"embedding,omitempty"`
	Chat      *ProbeResult `json:"chat,omitempty"`
}

// CheckHealth pings the Ollama base URL and, when reachable, probes the
// embedding and chat endpoints with a tiny payload. Models that are still
// loading surface here as failed probes rather than request timeouts later.
func (c *Client) CheckHealth(ctx context.Context) Health {
	reachable, detail := c.pingBaseURL(ctx)
	health := Health{Reachable: reachable, Detail: detail}
	if !reachable {
		return health
	}

	health.Embedding = c.safeProbe(ctx, "/api/embeddings",
		map[string]any{"model": c.embedModel, "prompt": "ping"})
	health.Chat = c.safeProbe(ctx, "/api/chat", map[string]any{
		"model":       c.chatModel,
		"messages":    []map[string]string{{"role": "user", "content": "ping"}},
		"temperature": 0.0,
		"top_p":       1.0,
		"stream":      false,
	})
	return health
}

func (c *Client) pingBaseURL(ctx context.Context) (bool, string) {
	reqCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return false, err.Error()
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("failed to reach ollama base url", "err", err)
		return false, err.Error()
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		c.logger.Warn("ollama base url unhealthy", "detail", detail)
		return false, detail
	}
	return true, "Ollama base URL reachable"
}

func (c *Client) safeProbe(ctx context.Context, endpoint string, payload map[string]any) *ProbeResult {
	result := &ProbeResult{Endpoint: endpoint}
	if _, err := c.post(ctx, endpoint, payload, c.healthTimeout); err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			result.StatusCode = reqErr.StatusCode
			result.Detail = reqErr.Detail
		} else {
			result.Detail = err.Error()
		}
		return result
	}
	result.OK = true
	result.Detail = "ok"
	return result
}
