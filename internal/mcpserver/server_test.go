package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/comigor/mrlift-console/internal/app"
	"github.com/comigor/mrlift-console/internal/assistant"
	"github.com/comigor/mrlift-console/internal/config"
	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/store"
)

// mockClient implements assistant.Client with an overridable SendFunc.
type mockClient struct {
	SendFunc func(ctx context.Context, req assistant.Request) (assistant.Reply, error)
}

func (m *mockClient) Send(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req)
	}
	return assistant.Reply{
		Answer:   "Te derivo con un especialista para que te informe. ¿En qué zona estás?",
		ThreadID: "thread_mcp",
		Meta:     &domain.Meta{RunID: "run_42", DurationMs: 321},
	}, nil
}

func newTestServer(t *testing.T, client assistant.Client) (*Server, *app.App) {
	t.Helper()
	cfg := &config.Config{
		Scenario:  config.ScenarioConfig{Delay: time.Millisecond},
		Export:    config.ExportConfig{Dir: t.TempDir()},
		Scenarios: map[string][]string{"corto": {"uno", "dos"}},
	}
	a := app.NewWithClient(context.Background(), cfg, store.NewMemory(), client)
	t.Cleanup(func() { _ = a.Close() })
	return New(a, "test"), a
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestSendMessage(t *testing.T) {
	s, a := newTestServer(t, &mockClient{})

	res, err := s.sendMessage(context.Background(), call(map[string]any{"text": "hola"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var got replyResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &got))
	require.Equal(t, "thread_mcp", got.ThreadID)
	require.Equal(t, &domain.Meta{RunID: "run_42", DurationMs: 321}, got.Meta)
	require.Len(t, got.Tags, 2)
	require.Equal(t, "asked for zone", got.Tags[0].Label)
	require.Equal(t, "informed hand-off", got.Tags[1].Label)
	require.Len(t, a.Engine.Snapshot().Messages, 2)
}

func TestSendMessage_Errors(t *testing.T) {
	client := &mockClient{SendFunc: func(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
		return assistant.Reply{}, &assistant.TransportError{Attempts: 2, Err: errors.New("HTTP error! status: 500")}
	}}
	s, _ := newTestServer(t, client)

	res, err := s.sendMessage(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	require.True(t, res.IsError)

	res, err = s.sendMessage(context.Background(), call(map[string]any{"text": "hola"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Equal(t, "Error: HTTP error! status: 500", resultText(t, res))
}

func TestRunScenarioAndStatus(t *testing.T) {
	s, _ := newTestServer(t, &mockClient{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := s.runScenario(ctx, call(map[string]any{"name": "corto"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, resultText(t, res), "[USER] uno\n\n[ASSISTANT]")
	require.Contains(t, resultText(t, res), "[USER] dos")

	res, err = s.runScenario(ctx, call(map[string]any{"name": "missing"}))
	require.NoError(t, err)
	require.True(t, res.IsError)

	res, err = s.getStatus(ctx, call(nil))
	require.NoError(t, err)
	var st statusResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &st))
	require.Equal(t, 4, st.Messages)
	require.Equal(t, "thread_mcp", st.ThreadID)
	require.False(t, st.InFlight)
	require.Empty(t, st.Pending)
}

func TestResetConversation(t *testing.T) {
	s, a := newTestServer(t, &mockClient{})
	ctx := context.Background()
	require.NoError(t, a.Engine.Send(ctx, "hola"))

	res, err := s.resetConversation(ctx, call(map[string]any{"confirm": false}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Len(t, a.Engine.Snapshot().Messages, 2)

	res, err = s.resetConversation(ctx, call(map[string]any{"confirm": true}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Empty(t, a.Engine.Snapshot().Messages)
}

func TestClassifyReply(t *testing.T) {
	s, _ := newTestServer(t, &mockClient{})
	res, err := s.classifyReply(context.Background(), call(map[string]any{"text": "Hacemos soldadura"}))
	require.NoError(t, err)
	require.JSONEq(t, `[{"kind":"danger","label":"possible fabrication"}]`, resultText(t, res))
}

func TestSetEvaluation(t *testing.T) {
	s, a := newTestServer(t, &mockClient{})
	ctx := context.Background()

	res, err := s.setEvaluation(ctx, call(map[string]any{
		"mode":         "out_of_scope",
		"check":        "no_hallucination",
		"verdict":      "failed",
		"observations": "Inventó alquiler",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, domain.ModeOutOfScope, a.Sheet.Context().TestMode)
	require.True(t, a.Sheet.Evaluation().Checks[domain.CheckNoHallucination])
	require.Equal(t, domain.VerdictFailed, *a.Sheet.Evaluation().Score)

	res, err = s.setEvaluation(ctx, call(map[string]any{"verdict": "none", "check": "no_hallucination", "value": false}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Nil(t, a.Sheet.Evaluation().Score)
	require.False(t, a.Sheet.Evaluation().Checks[domain.CheckNoHallucination])

	res, err = s.setEvaluation(ctx, call(map[string]any{"check": "bogus"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestExportSession(t *testing.T) {
	s, a := newTestServer(t, &mockClient{})
	ctx := context.Background()

	res, err := s.exportSession(ctx, call(nil))
	require.NoError(t, err)
	require.True(t, res.IsError)

	require.NoError(t, a.Engine.Send(ctx, "hola"))
	dir := t.TempDir()
	res, err = s.exportSession(ctx, call(map[string]any{"dir": dir}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, resultText(t, res), dir)
}
