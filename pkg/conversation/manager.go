package conversation

import (
	"context"
	"log/slog"
	"regexp"
	"sync"

	"anonwall/pkg/bus"
)

// Manager owns the per-sender conversation table. Each sender runs at
// most one conversation at a time; while one is open, every further
// message from that sender is routed into its pending question instead of
// starting another.
type Manager struct {
	pipeline *Pipeline
	trigger  *regexp.Regexp
	groupID  int64
	log      *slog.Logger

	mu     sync.Mutex
	active map[int64]*session
}

// NewManager builds a manager around one pipeline and trigger pattern.
func NewManager(pipeline *Pipeline, trigger *regexp.Regexp, groupID int64, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		pipeline: pipeline,
		trigger:  trigger,
		groupID:  groupID,
		log:      log.With("component", "conversation.manager"),
		active:   make(map[int64]*session),
	}
}

// HandleInbound routes one transport message: into an open session's
// pending question when the sender has one, otherwise starting a new
// conversation on a trigger match. Messages from the community account
// itself are rejected immediately.
func (m *Manager) HandleInbound(ctx context.Context, msg bus.InboundMessage) {
	m.mu.Lock()
	if open, ok := m.active[msg.SenderID]; ok {
		m.mu.Unlock()
		if !open.deliver(msg) {
			m.log.Debug("Dropping turn for busy conversation", "sender_id", msg.SenderID, "state", open.State().String())
		}
		return
	}

	if msg.SenderID == -m.groupID || !m.trigger.MatchString(msg.Text) {
		m.mu.Unlock()
		return
	}

	s := newSession(msg.SenderID, msg.PeerID)
	m.active[msg.SenderID] = s
	m.mu.Unlock()

	go func() {
		defer m.release(s.senderID)
		m.pipeline.Run(ctx, s)
	}()
}

// ActiveConversations reports how many conversations are in flight.
func (m *Manager) ActiveConversations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) release(senderID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, senderID)
}
