// Package outbox drains the durable send queue through the REST client so
// messages composed while offline go out once connectivity returns.
package outbox

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/thinhng24/CollabSphere-sub001/internal/bus"
	"github.com/thinhng24/CollabSphere-sub001/internal/rest"
	"github.com/thinhng24/CollabSphere-sub001/internal/state"
	"github.com/thinhng24/CollabSphere-sub001/internal/storage"
)

// MessageSender sends a queued message to the server.
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID, clientMessageID, content, msgType string) (state.Message, error)
}

// Ack is the payload of a message.send_ack event.
type Ack struct {
	ClientMsgID    string
	ConversationID string
	Message        state.Message
}

// Failure is the payload of a message.send_failed event.
type Failure struct {
	ClientMsgID    string
	ConversationID string
	Error          string
	Permanent      bool
}

// Sender polls the outbox table and sends pending entries in order.
type Sender struct {
	db     *storage.DB
	sender MessageSender
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc

	pollInterval time.Duration
}

// NewSender creates an outbox sender.
func NewSender(db *storage.DB, sender MessageSender, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		db:           db,
		sender:       sender,
		bus:          b,
		logger:       logger,
		pollInterval: 500 * time.Millisecond,
	}
}

// Start begins polling for queued entries.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the polling loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		msg, err := s.sender.SendMessage(ctx, entry.ConversationID, entry.ClientMsgID, entry.Content, entry.MessageType)
		if err != nil {
			s.handleFailure(entry, err)
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID, msg.ID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}

		s.logger.Info("message sent",
			zap.String("client_msg_id", entry.ClientMsgID),
			zap.String("server_msg_id", msg.ID))
		s.bus.Publish(bus.Event{
			Kind: "message.send_ack",
			Payload: Ack{
				ClientMsgID:    entry.ClientMsgID,
				ConversationID: entry.ConversationID,
				Message:        msg,
			},
		})
	}
}

// handleFailure decides between a permanent failure and a retry. Transient
// errors return the entry to the queue for the next tick; rejected requests
// are marked failed so they are never resent.
func (s *Sender) handleFailure(entry storage.OutboxEntry, err error) {
	permanent := isPermanent(err)

	if !permanent {
		s.logger.Warn("send failed, will retry",
			zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		if dbErr := s.db.RequeueOutbox(entry.ClientMsgID); dbErr != nil {
			s.logger.Error("failed to requeue", zap.Error(dbErr), zap.String("client_msg_id", entry.ClientMsgID))
		}
		return
	}

	s.logger.Error("send rejected",
		zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
	if dbErr := s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error()); dbErr != nil {
		s.logger.Error("failed to mark failed", zap.Error(dbErr), zap.String("client_msg_id", entry.ClientMsgID))
	}
	s.bus.Publish(bus.Event{
		Kind: "message.send_failed",
		Payload: Failure{
			ClientMsgID:    entry.ClientMsgID,
			ConversationID: entry.ConversationID,
			Error:          err.Error(),
			Permanent:      true,
		},
	})
}

// isPermanent reports whether the server definitively rejected the message.
// Unauthorized is transient: the entry waits for the next login.
func isPermanent(err error) bool {
	if errors.Is(err, rest.ErrNotFound) {
		return true
	}
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 400 && apiErr.Status < http.StatusInternalServerError
	}
	return false
}
