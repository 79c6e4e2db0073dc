// Package scenario replays scripted tester prompts against the conversation
// engine, one turn after each assistant reply.
package scenario

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/engine"
	"github.com/comigor/mrlift-console/internal/logger"
)

// DefaultDelay is the pause between an assistant reply and the next scripted turn.
const DefaultDelay = 1500 * time.Millisecond

var ErrEmptyScenario = errors.New("scenario: no prompts to send")

// Conversation is what the runner needs from the engine.
type Conversation interface {
	Send(ctx context.Context, text string) error
	SendNext(ctx context.Context, guard func(engine.State) (string, bool)) (bool, error)
	Subscribe(fn engine.Observer) func()
	Snapshot() engine.State
}

var _ Conversation = (*engine.Engine)(nil)

// Option customises a Runner.
type Option func(*Runner)

// WithDelay sets the inter-turn delay.
func WithDelay(d time.Duration) Option {
	return func(r *Runner) { r.delay = d }
}

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// Runner owns the scenario queue. After every engine event it cancels any
// armed continuation and re-arms one only when the last turn is an assistant
// reply, nothing is in flight and the queue is not empty. At most one
// continuation is armed at a time.
type Runner struct {
	conv  Conversation
	ctx   context.Context
	clock Clock
	delay time.Duration

	mu          sync.Mutex
	queue       []string
	timer       Timer
	token       uint64
	inFlight    bool
	changed     chan struct{}
	unsubscribe func()
}

// NewRunner attaches a runner to conv. ctx bounds the scripted sends.
func NewRunner(ctx context.Context, conv Conversation, opts ...Option) *Runner {
	r := &Runner{
		conv:    conv,
		ctx:     ctx,
		clock:   realClock{},
		delay:   DefaultDelay,
		changed: make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	r.inFlight = conv.Snapshot().InFlight
	r.unsubscribe = conv.Subscribe(r.observe)
	return r
}

// Start sends the first prompt right away and queues the rest. It returns
// once the first turn has resolved.
func (r *Runner) Start(ctx context.Context, prompts []string) error {
	var script []string
	for _, p := range prompts {
		if p = strings.TrimSpace(p); p != "" {
			script = append(script, p)
		}
	}
	if len(script) == 0 {
		return ErrEmptyScenario
	}

	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return engine.ErrBusy
	}
	r.cancelLocked()
	r.queue = append([]string(nil), script[1:]...)
	r.notifyLocked()
	r.mu.Unlock()

	logger.L.Info("scenario started", "turns", len(script))
	err := r.conv.Send(ctx, script[0])
	if errors.Is(err, engine.ErrBusy) || errors.Is(err, engine.ErrEmptyInput) {
		r.Stop()
	}
	return err
}

// Pending returns the prompts still queued.
func (r *Runner) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queue...)
}

// Stop empties the queue and disarms any continuation. The conversation
// itself is left alone.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = nil
	r.cancelLocked()
	r.notifyLocked()
}

// Close detaches the runner from the engine.
func (r *Runner) Close() {
	r.Stop()
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// Wait blocks until the queue is empty, no continuation is armed and
// nothing is in flight.
func (r *Runner) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		idle := len(r.queue) == 0 && r.timer == nil && !r.inFlight
		ch := r.changed
		r.mu.Unlock()
		if idle {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// observe runs under the engine lock for every state change.
func (r *Runner) observe(ev engine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inFlight = ev.State.InFlight
	r.cancelLocked()
	switch ev.Kind {
	case engine.EventSendFailed, engine.EventReset, engine.EventRestored:
		if len(r.queue) > 0 {
			logger.L.Info("scenario aborted", "reason", ev.Kind, "dropped", len(r.queue))
		}
		r.queue = nil
	}
	r.armLocked(ev.State)
	r.notifyLocked()
}

func (r *Runner) armLocked(st engine.State) {
	if len(r.queue) == 0 || st.InFlight {
		return
	}
	if role, ok := st.LastRole(); !ok || role != domain.RoleAssistant {
		return
	}
	token := r.token
	r.timer = r.clock.AfterFunc(r.delay, func() { r.fire(token) })
}

// fire sends the next queued prompt if the continuation that armed it is
// still the current one.
func (r *Runner) fire(token uint64) {
	sent, err := r.conv.SendNext(r.ctx, func(st engine.State) (string, bool) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if token != r.token || len(r.queue) == 0 {
			return "", false
		}
		if role, ok := st.LastRole(); !ok || role != domain.RoleAssistant {
			return "", false
		}
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.timer = nil
		r.inFlight = true
		return next, true
	})
	if err != nil && !errors.Is(err, engine.ErrStaleReply) {
		logger.L.Warn("scripted turn failed", "error", err)
	}
	if !sent {
		r.mu.Lock()
		if token == r.token {
			r.timer = nil
			r.notifyLocked()
		}
		r.mu.Unlock()
	}
}

// cancelLocked disarms the pending continuation. Bumping the token also
// rejects a callback that already started.
func (r *Runner) cancelLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.token++
}

func (r *Runner) notifyLocked() {
	close(r.changed)
	r.changed = make(chan struct{})
}
