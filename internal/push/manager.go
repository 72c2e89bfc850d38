// Package push owns the real-time channel: the websocket lifecycle, bounded
// reconnection, per-conversation group membership, and fan-out of named
// server events to registered handlers.
//
// The channel is an accelerator, not a source of truth: message history is
// always recoverable over REST, so transport trouble never surfaces as an
// error to callers. It shows up only as push.state_changed notifications.
package push

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Server event names carried on the channel.
const (
	EventReceiveMessage      = "ReceiveMessage"
	EventMessageEdited       = "MessageEdited"
	EventMessageDeleted      = "MessageDeleted"
	EventUserTyping          = "UserTyping"
	EventUserOnline          = "UserOnline"
	EventUserOffline         = "UserOffline"
	EventConversationCreated = "ConversationCreated"
	EventConversationUpdated = "ConversationUpdated"
)

// Outbound invoke targets.
const (
	targetJoinConversation  = "joinConversation"
	targetLeaveConversation = "leaveConversation"
	targetMarkAsRead        = "markAsRead"
	targetStartTyping       = "startTyping"
	targetStopTyping        = "stopTyping"
)

// Handler receives the raw payload of one named event.
type Handler func(payload json.RawMessage)

// TokenSource supplies a fresh access token for each dial attempt.
type TokenSource func(ctx context.Context) (string, error)

// Manager drives the push channel state machine and delivers events.
type Manager struct {
	url       string
	transport Transport
	tokens    TokenSource
	machine   *Machine
	logger    *zap.Logger

	backoffBase time.Duration
	backoffMax  time.Duration

	mu       sync.Mutex
	conn     Conn
	cancel   context.CancelFunc
	done     chan struct{}
	handlers map[string][]handlerEntry
	nextID   int
}

type handlerEntry struct {
	id int
	fn Handler
}

// NewManager creates a manager. The machine publishes state changes on its
// bus; dependents subscribe to "push." there.
func NewManager(url string, transport Transport, tokens TokenSource, machine *Machine, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		url:         url,
		transport:   transport,
		tokens:      tokens,
		machine:     machine,
		logger:      logger,
		backoffBase: time.Second,
		backoffMax:  30 * time.Second,
		handlers:    map[string][]handlerEntry{},
	}
}

// On registers a handler for a named event and returns its disposer.
// Handlers persist across reconnects; delivery is in registration order, one
// event fully dispatched before the next.
func (m *Manager) On(event string, h Handler) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.handlers[event] = append(m.handlers[event], handlerEntry{id: id, fn: h})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		entries := m.handlers[event]
		for i, e := range entries {
			if e.id == id {
				m.handlers[event] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
	}
}

// Start begins the connect loop. No-op if already running.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.run(ctx)
	}()
}

// Stop tears down the transport and moves to Disconnected. Handlers stay
// registered.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	conn := m.conn
	done := m.done
	m.cancel = nil
	m.conn = nil
	m.done = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-done
	_ = m.machine.Transition(Disconnected)
}

// IsConnected reports whether the channel is currently up.
func (m *Manager) IsConnected() bool {
	return m.machine.Current() == Connected
}

// run is the connect/reconnect loop. One iteration per dial attempt.
func (m *Manager) run(ctx context.Context) {
	delay := m.backoffBase
	for {
		if err := m.machine.Transition(Connecting); err != nil {
			m.logger.Warn("push channel state out of sync", zap.Error(err))
		}

		conn, err := m.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("push channel connect failed", zap.Error(err), zap.Duration("retry_in", delay))
			_ = m.machine.Transition(Reconnecting)
			if !sleep(ctx, delay) {
				return
			}
			delay = min(delay*2, m.backoffMax)
			continue
		}

		m.mu.Lock()
		if m.cancel == nil {
			// Stop won the race while the dial was in flight.
			m.mu.Unlock()
			_ = conn.Close()
			return
		}
		m.conn = conn
		m.mu.Unlock()
		_ = m.machine.Transition(Connected)
		m.logger.Info("push channel connected")
		delay = m.backoffBase

		m.readLoop(ctx, conn)
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("push channel dropped")
		_ = m.machine.Transition(Reconnecting)
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (m *Manager) dial(ctx context.Context) (Conn, error) {
	tok, err := m.tokens(ctx)
	if err != nil {
		return nil, err
	}
	return m.transport.Dial(ctx, m.url, tok)
}

// readLoop dispatches inbound frames until the connection fails.
func (m *Manager) readLoop(ctx context.Context, conn Conn) {
	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Debug("push channel read error", zap.Error(err))
			}
			return
		}
		m.dispatch(frame)
	}
}

func (m *Manager) dispatch(frame Frame) {
	m.mu.Lock()
	entries := append([]handlerEntry(nil), m.handlers[frame.Event]...)
	m.mu.Unlock()

	for _, e := range entries {
		e.fn(frame.Payload)
	}
}

// invoke sends an outbound call when connected. Calls while the channel is
// down are tolerated as logged no-ops: group membership is not load-bearing,
// REST refetch covers any gap.
func (m *Manager) invoke(target string, payload any) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil || m.machine.Current() != Connected {
		m.logger.Debug("push invoke skipped, channel not connected", zap.String("target", target))
		return
	}
	if err := conn.Invoke(target, payload); err != nil {
		m.logger.Warn("push invoke failed", zap.String("target", target), zap.Error(err))
	}
}

// JoinConversation subscribes this session to a conversation's event group.
func (m *Manager) JoinConversation(id string) {
	m.invoke(targetJoinConversation, map[string]string{"conversationId": id})
}

// LeaveConversation unsubscribes from a conversation's event group.
func (m *Manager) LeaveConversation(id string) {
	m.invoke(targetLeaveConversation, map[string]string{"conversationId": id})
}

// MarkAsRead notifies other participants that the conversation was read.
func (m *Manager) MarkAsRead(id string) {
	m.invoke(targetMarkAsRead, map[string]string{"conversationId": id})
}

// StartTyping broadcasts a typing-start signal.
func (m *Manager) StartTyping(conversationID string) {
	m.invoke(targetStartTyping, map[string]string{"conversationId": conversationID})
}

// StopTyping broadcasts a typing-stop signal.
func (m *Manager) StopTyping(conversationID string) {
	m.invoke(targetStopTyping, map[string]string{"conversationId": conversationID})
}

// sleep waits for d or context cancellation. Reports whether the full wait
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
