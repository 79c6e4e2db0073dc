package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/mrlift-console/internal/domain"
)

// MockClient simulates the backend without any network traffic.
type MockClient struct {
	delay time.Duration
}

var _ Client = (*MockClient)(nil)

// NewMockClient returns a mock that answers after delay.
func NewMockClient(delay time.Duration) *MockClient {
	return &MockClient{delay: delay}
}

// Send echoes the message back, keeping the incoming thread or minting one.
func (m *MockClient) Send(ctx context.Context, req Request) (Reply, error) {
	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		case <-t.C:
		}
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = "thread_mock_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	}
	return Reply{
		Answer:   fmt.Sprintf("[MOCK RESPONSE] Me preguntaste: %q. Esta es una simulación del backend.", req.Message),
		ThreadID: threadID,
		Meta:     &domain.Meta{RunID: "run_mock_123", DurationMs: 1234},
	}, nil
}
