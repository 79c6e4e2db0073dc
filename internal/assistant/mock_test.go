package assistant

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMockClient_MintsThreadOnFirstTurn(t *testing.T) {
	m := NewMockClient(0)
	reply, err := m.Send(context.Background(), Request{Message: "hola"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(reply.ThreadID, "thread_mock_"))
	require.Len(t, reply.ThreadID, len("thread_mock_")+9)
	require.Equal(t, `[MOCK RESPONSE] Me preguntaste: "hola". Esta es una simulación del backend.`, reply.Answer)
	require.Equal(t, "run_mock_123", reply.Meta.RunID)
	require.Equal(t, int64(1234), reply.Meta.DurationMs)
}

func TestMockClient_KeepsThread(t *testing.T) {
	reply, err := NewMockClient(0).Send(context.Background(), Request{Message: "x", ThreadID: "thread_7"})
	require.NoError(t, err)
	require.Equal(t, "thread_7", reply.ThreadID)
}

func TestMockClient_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMockClient(time.Hour).Send(ctx, Request{Message: "x"})
	require.ErrorIs(t, err, context.Canceled)
}
