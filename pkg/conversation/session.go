package conversation

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"anonwall/pkg/bus"
)

// ErrAbandoned signals that the user never answered a question turn. The
// conversation ends quietly: no reply is sent and nothing is dispatched.
var ErrAbandoned = errors.New("conversation abandoned")

// State names one step of a conversation's fixed progression.
type State int32

const (
	StateAwaitingDestination State = iota
	StateAwaitingMessage
	StateDispatching
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingDestination:
		return "awaiting_destination"
	case StateAwaitingMessage:
		return "awaiting_message"
	case StateDispatching:
		return "dispatching"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// session is one in-flight conversation with a single sender. The turns
// channel is the suspension point: the manager routes the sender's next
// message into it while a question is pending.
type session struct {
	senderID int64
	peerID   int64
	turns    chan bus.InboundMessage
	state    atomic.Int32
}

func newSession(senderID, peerID int64) *session {
	return &session{
		senderID: senderID,
		peerID:   peerID,
		// One slot of slack so an answer arriving while the pipeline is
		// between steps is not lost.
		turns: make(chan bus.InboundMessage, 1),
	}
}

func (s *session) setState(state State) {
	s.state.Store(int32(state))
}

// State reports the conversation's current step.
func (s *session) State() State {
	return State(s.state.Load())
}

// deliver hands the sender's next message to the waiting question, if any.
// Messages arriving faster than the pipeline consumes them are dropped;
// per-sender turns are serialized, never queued.
func (s *session) deliver(msg bus.InboundMessage) bool {
	select {
	case s.turns <- msg:
		return true
	default:
		return false
	}
}

// await suspends until the sender's next turn, the question timeout, or
// context cancellation. Timeout is a result, not a failure.
func (s *session) await(ctx context.Context, timeout time.Duration) (bus.InboundMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case turn := <-s.turns:
		return turn, nil
	case <-timer.C:
		return bus.InboundMessage{}, ErrAbandoned
	case <-ctx.Done():
		return bus.InboundMessage{}, ctx.Err()
	}
}
