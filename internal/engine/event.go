package engine

import "github.com/comigor/mrlift-console/internal/domain"

// EventKind names a state change.
type EventKind string

const (
	EventUserTurn      EventKind = "user_turn"
	EventAssistantTurn EventKind = "assistant_turn"
	EventSendFailed    EventKind = "send_failed"
	EventReset         EventKind = "reset"
	EventRestored      EventKind = "restored"
)

// Event is published after every state change, with the state as it is
// once the change has been applied.
type Event struct {
	Kind    EventKind
	Message *domain.Message // the appended turn, for user and assistant turns
	State   State
}

// Observer receives events synchronously while the engine is locked, so
// observers see changes in order and must not call back into the engine.
type Observer func(Event)

// State is a read-only snapshot of the conversation.
type State struct {
	Messages []domain.Message
	ThreadID string
	InFlight bool
	Err      string // user-facing text of the last failed send
	Epoch    uint64
}

// LastRole reports the role of the most recent turn.
func (s State) LastRole() (domain.Role, bool) {
	if len(s.Messages) == 0 {
		return "", false
	}
	return s.Messages[len(s.Messages)-1].Role, true
}
