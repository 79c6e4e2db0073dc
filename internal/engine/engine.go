// Package engine owns the conversation: the message log, the thread id, the
// in-flight flag and the last error. Every send, reply, failure and reset goes
// through it, and each change is mirrored to the session store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/mrlift-console/internal/assistant"
	"github.com/comigor/mrlift-console/internal/domain"
	"github.com/comigor/mrlift-console/internal/logger"
)

var (
	ErrEmptyInput   = errors.New("engine: empty message")
	ErrBusy         = errors.New("engine: a message is already in flight")
	ErrNotConfirmed = errors.New("engine: reset requires confirmation")
	ErrStaleReply   = errors.New("engine: reply arrived after a reset and was discarded")
)

const fallbackErrorText = "Error de conexión"

// Store is the slice of the session store the engine mirrors its state to.
type Store interface {
	Messages(ctx context.Context) []domain.Message
	ThreadID(ctx context.Context) string
	SaveMessages(ctx context.Context, msgs []domain.Message) error
	SaveThreadID(ctx context.Context, id string) error
}

// Option customises an Engine.
type Option func(*Engine)

// WithAssistantID sets the assistant id sent with every request.
func WithAssistantID(id string) Option {
	return func(e *Engine) { e.assistantID = id }
}

// WithNow overrides the clock used to timestamp turns.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine is safe for concurrent use. At most one send is in flight at a time.
type Engine struct {
	mu          sync.Mutex
	fsm         *stateless.StateMachine
	client      assistant.Client
	store       Store
	assistantID string
	now         func() time.Time

	messages  []domain.Message
	threadID  string
	lastErr   string
	epoch     uint64
	observers []subscriber
	nextObs   int
}

type subscriber struct {
	id int
	fn Observer
}

// New restores the conversation from store and returns an idle engine.
func New(ctx context.Context, client assistant.Client, store Store, opts ...Option) *Engine {
	e := &Engine{
		fsm:       newMachine(),
		client:    client,
		store:     store,
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.messages = store.Messages(ctx)
	e.threadID = store.ThreadID(ctx)
	logger.L.Info("conversation restored", "messages", len(e.messages), "thread_id", e.threadID)
	return e
}

// Subscribe registers fn for every subsequent event and returns a function
// that removes it.
func (e *Engine) Subscribe(fn Observer) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextObs
	e.nextObs++
	e.observers = append(e.observers, subscriber{id: id, fn: fn})
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.observers = slices.DeleteFunc(e.observers, func(s subscriber) bool { return s.id == id })
	}
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// Send appends text as a user turn and blocks until the assistant replies
// or the send fails. A failure is also recorded as the engine's last error.
func (e *Engine) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}
	e.mu.Lock()
	c, err := e.beginLocked(ctx, text)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return e.complete(ctx, c)
}

// SendNext lets a caller decide what to send while holding the engine
// lock, so the decision and the dispatch cannot be interleaved with another
// change. guard sees the current state and returns the text to send, or
// false to send nothing. SendNext reports whether a send was dispatched.
func (e *Engine) SendNext(ctx context.Context, guard func(State) (string, bool)) (bool, error) {
	e.mu.Lock()
	if e.phaseLocked() != PhaseIdle {
		e.mu.Unlock()
		return false, nil
	}
	text, ok := guard(e.stateLocked())
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		e.mu.Unlock()
		return false, nil
	}
	c, err := e.beginLocked(ctx, text)
	e.mu.Unlock()
	if err != nil {
		return false, err
	}
	return true, e.complete(ctx, c)
}

// Reset clears the log, the thread id and the last error. Without
// confirmation nothing changes. A reply still in flight is discarded when it
// resolves.
func (e *Engine) Reset(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.fsm.Fire(TriggerReset); err != nil {
		return fmt.Errorf("engine: reset: %w", err)
	}
	e.epoch++
	e.messages = []domain.Message{}
	e.threadID = ""
	e.lastErr = ""
	e.persistLocked(ctx, true)
	logger.L.Info("conversation reset", "epoch", e.epoch)
	e.publishLocked(Event{Kind: EventReset})
	return nil
}

// Restore replaces the conversation with msgs and threadID, as when a
// session is imported. The engine must be idle.
func (e *Engine) Restore(ctx context.Context, msgs []domain.Message, threadID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phaseLocked() != PhaseIdle {
		return ErrBusy
	}
	e.epoch++
	e.messages = append([]domain.Message{}, msgs...)
	e.threadID = threadID
	e.lastErr = ""
	e.persistLocked(ctx, true)
	logger.L.Info("conversation restored from import", "messages", len(msgs), "thread_id", threadID)
	e.publishLocked(Event{Kind: EventRestored})
	return nil
}

// UserErrorText turns a send failure into the text shown to the tester.
func UserErrorText(err error) string {
	var te *assistant.TransportError
	if errors.As(err, &te) && te.Err != nil {
		err = te.Err
	}
	msg := ""
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	if msg == "" {
		msg = fallbackErrorText
	}
	return "Error: " + msg
}

type call struct {
	epoch uint64
	req   assistant.Request
}

func (e *Engine) beginLocked(ctx context.Context, text string) (call, error) {
	if e.phaseLocked() != PhaseIdle {
		return call{}, ErrBusy
	}
	if err := e.fsm.Fire(TriggerSend); err != nil {
		return call{}, fmt.Errorf("engine: send: %w", err)
	}
	msg := domain.NewUserMessage(text, e.now())
	e.messages = append(e.messages, msg)
	e.lastErr = ""
	e.persistLocked(ctx, false)
	e.publishLocked(Event{Kind: EventUserTurn, Message: &msg})
	return call{
		epoch: e.epoch,
		req:   assistant.Request{Message: text, ThreadID: e.threadID, AssistantID: e.assistantID},
	}, nil
}

func (e *Engine) complete(ctx context.Context, c call) error {
	reply, err := e.dispatch(ctx, c.req)

	e.mu.Lock()
	defer e.mu.Unlock()
	if c.epoch != e.epoch {
		logger.L.Info("discarding reply from before reset", "epoch", c.epoch, "current", e.epoch, "error", err)
		return ErrStaleReply
	}
	if err != nil {
		e.lastErr = UserErrorText(err)
		if ferr := e.fsm.Fire(TriggerSendFailed); ferr != nil {
			logger.L.Error("engine transition failed", "trigger", TriggerSendFailed, "error", ferr)
		}
		e.publishLocked(Event{Kind: EventSendFailed})
		return err
	}

	msg := domain.NewAssistantMessage(reply.Answer, reply.Meta, e.now())
	e.messages = append(e.messages, msg)
	threadChanged := reply.ThreadID != "" && reply.ThreadID != e.threadID
	if reply.ThreadID != "" {
		e.threadID = reply.ThreadID
	}
	if ferr := e.fsm.Fire(TriggerReplyReceived); ferr != nil {
		logger.L.Error("engine transition failed", "trigger", TriggerReplyReceived, "error", ferr)
	}
	e.persistLocked(ctx, threadChanged)
	e.publishLocked(Event{Kind: EventAssistantTurn, Message: &msg})
	return nil
}

// dispatch calls the transport and turns a panic into an error so the
// in-flight phase is always left.
func (e *Engine) dispatch(ctx context.Context, req assistant.Request) (reply assistant.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.L.Error("assistant client panicked", "panic", r)
			err = fmt.Errorf("engine: transport panic: %v", r)
		}
	}()
	return e.client.Send(ctx, req)
}

func (e *Engine) phaseLocked() Phase {
	p, _ := e.fsm.MustState().(Phase)
	return p
}

func (e *Engine) stateLocked() State {
	return State{
		Messages: append([]domain.Message{}, e.messages...),
		ThreadID: e.threadID,
		InFlight: e.phaseLocked() == PhaseAwaitingReply,
		Err:      e.lastErr,
		Epoch:    e.epoch,
	}
}

// persistLocked mirrors the log, and the thread id when it changed. Store
// failures are logged; the in-memory conversation stays authoritative.
func (e *Engine) persistLocked(ctx context.Context, thread bool) {
	ctx = context.WithoutCancel(ctx)
	if err := e.store.SaveMessages(ctx, e.messages); err != nil {
		logger.L.Error("failed to persist messages", "error", err)
	}
	if !thread {
		return
	}
	if err := e.store.SaveThreadID(ctx, e.threadID); err != nil {
		logger.L.Error("failed to persist thread id", "error", err)
	}
}

func (e *Engine) publishLocked(ev Event) {
	ev.State = e.stateLocked()
	for _, s := range e.observers {
		s.fn(ev)
	}
}
