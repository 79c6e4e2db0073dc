package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/comigor/mrlift-console/internal/domain"
)

// chatRequest is the body accepted by the assistant proxy.
type chatRequest struct {
	AssistantID string  `json:"assistant_id"`
	Message     string  `json:"message"`
	ThreadID    *string `json:"thread_id"`
}

// chatResponse is the body returned by the assistant proxy.
type chatResponse struct {
	Answer   string `json:"answer"`
	ThreadID string `json:"thread_id"`
	Meta     *struct {
		RunID      string `json:"run_id"`
		DurationMs int64  `json:"duration_ms"`
	} `json:"meta"`
}

// HTTPClient sends turns to the assistant proxy's chat endpoint.
type HTTPClient struct {
	baseURL     string
	assistantID string
	testKey     string
	client      *http.Client
}

var _ Client = (*HTTPClient)(nil)

// HTTPOption customizes an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTestKey sets the X-Test-Key header sent on every request.
func WithTestKey(key string) HTTPOption {
	return func(c *HTTPClient) {
		c.testKey = strings.TrimSpace(key)
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.client = hc
	}
}

// WithTimeout bounds each attempt. Zero means no timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		c.client = &http.Client{Timeout: d}
	}
}

// NewHTTPClient creates a client for baseURL using assistantID by default.
func NewHTTPClient(baseURL, assistantID string, opts ...HTTPOption) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("assistant: base url must not be empty")
	}
	c := &HTTPClient{
		baseURL:     strings.TrimSpace(baseURL),
		assistantID: assistantID,
		client:      &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func chatURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/chat"
}

// Send posts one message and retries once on any failure.
func (c *HTTPClient) Send(ctx context.Context, req Request) (Reply, error) {
	assistantID := req.AssistantID
	if assistantID == "" {
		assistantID = c.assistantID
	}
	payload := chatRequest{AssistantID: assistantID, Message: req.Message}
	if req.ThreadID != "" {
		threadID := req.ThreadID
		payload.ThreadID = &threadID
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, fmt.Errorf("assistant: marshal request: %w", err)
	}
	url := chatURL(c.baseURL)

	return sendWithRetry(ctx, func(ctx context.Context) (Reply, error) {
		return c.post(ctx, url, body)
	})
}

func (c *HTTPClient) post(ctx context.Context, url string, body []byte) (Reply, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("assistant: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.testKey != "" {
		httpReq.Header.Set("X-Test-Key", c.testKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Reply{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Reply{}, &StatusError{StatusCode: resp.StatusCode, URL: url, Body: string(buf)}
	}

	var out chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Reply{}, fmt.Errorf("assistant: decode response: %w", err)
	}
	reply := Reply{Answer: out.Answer, ThreadID: out.ThreadID}
	if out.Meta != nil {
		reply.Meta = &domain.Meta{RunID: out.Meta.RunID, DurationMs: out.Meta.DurationMs}
	}
	return reply, nil
}
