// Package evaluation keeps the tester's annotations and turns a whole
// session into a portable export document.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/comigor/mrlift-console/internal/domain"
)

var (
	ErrUnknownCheck   = errors.New("evaluation: unknown checklist item")
	ErrUnknownVerdict = errors.New("evaluation: unknown verdict")
	ErrUnknownMode    = errors.New("evaluation: unknown test mode")
)

// Store persists the tester context and the evaluation record.
type Store interface {
	TestContext(ctx context.Context) domain.TestContext
	SaveTestContext(ctx context.Context, tc domain.TestContext) error
	Evaluation(ctx context.Context) domain.Evaluation
	SaveEvaluation(ctx context.Context, ev domain.Evaluation) error
}

// Sheet is changed only by tester action; the conversation never touches it.
type Sheet struct {
	mu    sync.Mutex
	store Store
	tc    domain.TestContext
	ev    domain.Evaluation
}

// NewSheet loads the persisted context and evaluation.
func NewSheet(ctx context.Context, store Store) *Sheet {
	return &Sheet{store: store, tc: store.TestContext(ctx), ev: store.Evaluation(ctx)}
}

func (s *Sheet) Context() domain.TestContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tc
}

func (s *Sheet) Evaluation() domain.Evaluation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ev.Clone()
}

// SetMode selects the client persona being played.
func (s *Sheet) SetMode(ctx context.Context, id string) error {
	opt, ok := domain.Lookup(domain.TestModes, strings.TrimSpace(id))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tc.TestMode = opt.ID
	return s.store.SaveTestContext(ctx, s.tc)
}

func (s *Sheet) SetObjective(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tc.TestObjective = text
	return s.store.SaveTestContext(ctx, s.tc)
}

// ToggleCheck flips a checklist item and returns its new value.
func (s *Sheet) ToggleCheck(ctx context.Context, id string) (bool, error) {
	check, err := lookupCheck(id)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ev.Checks[check] = !s.ev.Checks[check]
	return s.ev.Checks[check], s.saveLocked(ctx)
}

// SetCheck sets a checklist item explicitly.
func (s *Sheet) SetCheck(ctx context.Context, id string, value bool) error {
	check, err := lookupCheck(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ev.Checks[check] = value
	return s.saveLocked(ctx)
}

func (s *Sheet) SetVerdict(ctx context.Context, v string) error {
	opt, ok := domain.Lookup(domain.Verdicts, strings.TrimSpace(v))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVerdict, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	verdict := opt.ID
	s.ev.Score = &verdict
	return s.saveLocked(ctx)
}

func (s *Sheet) ClearVerdict(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ev.Score = nil
	return s.saveLocked(ctx)
}

func (s *Sheet) SetObservations(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ev.Observations = text
	return s.saveLocked(ctx)
}

// Replace swaps in an imported context and evaluation. Unknown modes,
// checks and verdicts are rejected before anything changes.
func (s *Sheet) Replace(ctx context.Context, tc domain.TestContext, ev domain.Evaluation) error {
	if _, ok := domain.Lookup(domain.TestModes, string(tc.TestMode)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, tc.TestMode)
	}
	for id := range ev.Checks {
		if _, err := lookupCheck(string(id)); err != nil {
			return err
		}
	}
	if ev.Score != nil {
		if _, ok := domain.Lookup(domain.Verdicts, string(*ev.Score)); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownVerdict, *ev.Score)
		}
	}
	ev = ev.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tc = tc
	s.ev = ev
	if err := s.store.SaveTestContext(ctx, tc); err != nil {
		return err
	}
	return s.saveLocked(ctx)
}

func (s *Sheet) saveLocked(ctx context.Context) error {
	if err := s.store.SaveEvaluation(ctx, s.ev); err != nil {
		return fmt.Errorf("evaluation: save: %w", err)
	}
	return nil
}

func lookupCheck(id string) (domain.CheckID, error) {
	opt, ok := domain.Lookup(domain.Checklist, strings.TrimSpace(id))
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCheck, id)
	}
	return opt.ID, nil
}
