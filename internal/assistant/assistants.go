package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/logger"
)

// AssistantsAPI is the subset of *openai.Client used to drive an assistant
// thread directly; it is easy to mock in tests.
type AssistantsAPI interface {
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
}

var _ AssistantsAPI = (*openai.Client)(nil)

// AssistantsClient bypasses the proxy and talks to the OpenAI Assistants API.
// The thread id it returns is the OpenAI thread, and Meta carries the run id
// and the wall-clock duration of the run.
type AssistantsClient struct {
	api          AssistantsAPI
	assistantID  string
	pollInterval time.Duration
	now          func() time.Time
}

var _ Client = (*AssistantsClient)(nil)

// NewOpenAIClient creates an OpenAI client
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

// NewAssistantsClient wraps api. pollInterval must be positive.
func NewAssistantsClient(api AssistantsAPI, assistantID string, pollInterval time.Duration) (*AssistantsClient, error) {
	if api == nil {
		return nil, errors.New("assistant: assistants api must not be nil")
	}
	if pollInterval <= 0 {
		return nil, errors.New("assistant: poll interval must be positive")
	}
	return &AssistantsClient{api: api, assistantID: assistantID, pollInterval: pollInterval, now: time.Now}, nil
}

// Send adds the message to the thread, runs the assistant and returns its
// answer. The retry resumes from the last completed step so a retried send
// never posts the user message twice.
func (c *AssistantsClient) Send(ctx context.Context, req Request) (Reply, error) {
	assistantID := req.AssistantID
	if assistantID == "" {
		assistantID = c.assistantID
	}
	threadID := req.ThreadID
	posted := false

	return sendWithRetry(ctx, func(ctx context.Context) (Reply, error) {
		start := c.now()
		if threadID == "" {
			thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
			if err != nil {
				return Reply{}, fmt.Errorf("create thread: %w", err)
			}
			threadID = thread.ID
		}
		if !posted {
			if _, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{Role: "user", Content: req.Message}); err != nil {
				return Reply{}, fmt.Errorf("create message: %w", err)
			}
			posted = true
		}
		run, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
		if err != nil {
			return Reply{}, fmt.Errorf("create run: %w", err)
		}
		run, err = c.awaitRun(ctx, threadID, run)
		if err != nil {
			return Reply{}, err
		}
		answer, err := c.runAnswer(ctx, threadID, run.ID)
		if err != nil {
			return Reply{}, err
		}
		return Reply{
			Answer:   answer,
			ThreadID: threadID,
			Meta:     &domain.Meta{RunID: run.ID, DurationMs: c.now().Sub(start).Milliseconds()},
		}, nil
	})
}

func (c *AssistantsClient) awaitRun(ctx context.Context, threadID string, run openai.Run) (openai.Run, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		switch run.Status {
		case openai.RunStatusCompleted:
			return run, nil
		case openai.RunStatusQueued, openai.RunStatusInProgress, openai.RunStatusCancelling:
		default:
			return run, fmt.Errorf("run %s ended with status %s", run.ID, run.Status)
		}
		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
		next, err := c.api.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("retrieve run: %w", err)
		}
		logger.L.Debug("assistant run polled", "run_id", next.ID, "status", next.Status)
		run = next
	}
}

func (c *AssistantsClient) runAnswer(ctx context.Context, threadID, runID string) (string, error) {
	limit := 10
	order := "desc"
	list, err := c.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	for _, msg := range list.Messages {
		if msg.Role != "assistant" {
			continue
		}
		var parts []string
		for _, content := range msg.Content {
			if content.Text != nil {
				parts = append(parts, content.Text.Value)
			}
		}
		return strings.Join(parts, "\n"), nil
	}
	return "", fmt.Errorf("run %s produced no assistant message", runID)
}
