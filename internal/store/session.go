package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/logger"
)

// Session is the typed view over the session keys. Getters never fail: an
// absent, unreadable or corrupt value yields the key's default and a warning.
type Session struct {
	kv KV
}

// NewSession wraps kv.
func NewSession(kv KV) *Session {
	return &Session{kv: kv}
}

// Close releases the underlying backend.
func (s *Session) Close() error {
	return s.kv.Close()
}

func (s *Session) read(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		logger.L.Warn("session read failed; using default", "key", key, "error", err)
		return nil, false
	}
	return raw, ok
}

func (s *Session) readJSON(ctx context.Context, key string, dst any) bool {
	raw, ok := s.read(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.L.Warn("corrupt session value; using default", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Session) writeJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, raw)
}

// Messages returns the persisted conversation log, or an empty log.
func (s *Session) Messages(ctx context.Context) []domain.Message {
	var msgs []domain.Message
	if !s.readJSON(ctx, KeyMessages, &msgs) || msgs == nil {
		return []domain.Message{}
	}
	return msgs
}

// SaveMessages replaces the persisted log.
func (s *Session) SaveMessages(ctx context.Context, msgs []domain.Message) error {
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return s.writeJSON(ctx, KeyMessages, msgs)
}

// ThreadID returns the persisted thread identifier, or "" when there is none.
func (s *Session) ThreadID(ctx context.Context) string {
	raw, ok := s.read(ctx, KeyThreadID)
	if !ok {
		return ""
	}
	return string(raw)
}

// SaveThreadID stores id; an empty id removes the key.
func (s *Session) SaveThreadID(ctx context.Context, id string) error {
	if id == "" {
		return s.kv.Delete(ctx, KeyThreadID)
	}
	return s.kv.Set(ctx, KeyThreadID, []byte(id))
}

// TestContext returns the tester context, defaulting the mode to new_client.
func (s *Session) TestContext(ctx context.Context) domain.TestContext {
	tc := domain.TestContext{TestMode: domain.DefaultTestMode}
	if raw, ok := s.read(ctx, KeyTestMode); ok {
		if _, known := domain.Lookup(domain.TestModes, string(raw)); known {
			tc.TestMode = domain.TestMode(raw)
		} else {
			logger.L.Warn("unknown persisted test mode; using default", "mode", string(raw))
		}
	}
	if raw, ok := s.read(ctx, KeyTestObjective); ok {
		tc.TestObjective = string(raw)
	}
	return tc
}

// SaveTestContext writes both context keys.
func (s *Session) SaveTestContext(ctx context.Context, tc domain.TestContext) error {
	if err := s.kv.Set(ctx, KeyTestMode, []byte(tc.TestMode)); err != nil {
		return err
	}
	return s.kv.Set(ctx, KeyTestObjective, []byte(tc.TestObjective))
}

// Evaluation returns the persisted evaluation, or the empty one.
func (s *Session) Evaluation(ctx context.Context) domain.Evaluation {
	var ev domain.Evaluation
	if !s.readJSON(ctx, KeyEvaluation, &ev) {
		return domain.NewEvaluation()
	}
	if ev.Checks == nil {
		ev.Checks = map[domain.CheckID]bool{}
	}
	if ev.Score != nil {
		if _, ok := domain.Lookup(domain.Verdicts, string(*ev.Score)); !ok {
			logger.L.Warn("unknown persisted verdict; clearing", "score", string(*ev.Score))
			ev.Score = nil
		}
	}
	return ev
}

// SaveEvaluation replaces the persisted evaluation.
func (s *Session) SaveEvaluation(ctx context.Context, ev domain.Evaluation) error {
	if ev.Checks == nil {
		ev.Checks = map[domain.CheckID]bool{}
	}
	return s.writeJSON(ctx, KeyEvaluation, ev)
}
