package assistant

import (
	"context"

	"github.com/comigor/mrlift-console/internal/logger"
)

// maxAttempts is one call plus exactly one immediate retry.
const maxAttempts = 2

// sendWithRetry runs op, retrying once with no backoff. A cancelled context
// is not retried.
func sendWithRetry(ctx context.Context, op func(context.Context) (Reply, error)) (Reply, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, err := op(ctx)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return Reply{}, &TransportError{Attempts: attempt, Err: err}
		}
		if attempt < maxAttempts {
			logger.L.Warn("retrying assistant request once", "error", err)
		}
	}
	logger.L.Error("assistant request failed", "attempts", maxAttempts, "error", lastErr)
	return Reply{}, &TransportError{Attempts: maxAttempts, Err: lastErr}
}
