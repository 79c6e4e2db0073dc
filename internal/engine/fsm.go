package engine

import (
	"context"

	"github.com/qmuntal/stateless"

	"github.com/comigor/mrlift-console/internal/logger"
)

// Phase is the engine's position in the send cycle.
type Phase string

const (
	PhaseIdle          Phase = "Idle"
	PhaseAwaitingReply Phase = "AwaitingReply"
)

// Trigger moves the engine between phases.
type Trigger string

const (
	TriggerSend          Trigger = "Send"
	TriggerReplyReceived Trigger = "ReplyReceived"
	TriggerSendFailed    Trigger = "SendFailed"
	TriggerReset         Trigger = "Reset"
)

// newMachine wires the two-phase send cycle. AwaitingReply is exactly the
// in-flight interval: every way out of it lands in Idle.
func newMachine() *stateless.StateMachine {
	fsm := stateless.NewStateMachine(PhaseIdle)

	fsm.Configure(PhaseIdle).
		Permit(TriggerSend, PhaseAwaitingReply).
		Ignore(TriggerReset)

	fsm.Configure(PhaseAwaitingReply).
		Permit(TriggerReplyReceived, PhaseIdle).
		Permit(TriggerSendFailed, PhaseIdle).
		Permit(TriggerReset, PhaseIdle)

	fsm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		logger.L.Debug("engine transition", "from", t.Source, "to", t.Destination, "trigger", t.Trigger)
	})
	return fsm
}
