// Package assistant talks to the remote "Mr. Lift" assistant: one user message
// out, one reply back.
package assistant

import (
	"context"

	"github.com/comigor/mrlift-console/internal/domain"
)

// Request is one outbound user turn. ThreadID is empty on the first turn;
// AssistantID falls back to the client's configured id when empty.
type Request struct {
	Message     string
	ThreadID    string
	AssistantID string
}

// Reply is the assistant's answer. ThreadID and Meta are optional.
type Reply struct {
	Answer   string
	ThreadID string
	Meta     *domain.Meta
}

// Client is the transport boundary used by the conversation engine; it is easy to mock in tests.
type Client interface {
	Send(ctx context.Context, req Request) (Reply, error)
}
