package orchestrator

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/thinhng24/CollabSphere-sub001/internal/bus"
	"github.com/thinhng24/CollabSphere-sub001/internal/outbox"
	"github.com/thinhng24/CollabSphere-sub001/internal/push"
	"github.com/thinhng24/CollabSphere-sub001/internal/rest"
	"github.com/thinhng24/CollabSphere-sub001/internal/state"
)

type messageRefPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

type presencePayload struct {
	UserID string `json:"userId"`
}

// subscribePushEvents maps every named server event to a reducer action.
// Called with o.mu held.
func (o *Orchestrator) subscribePushEvents() []func() {
	return []func(){
		o.channel.On(push.EventReceiveMessage, o.onReceiveMessage),
		o.channel.On(push.EventMessageEdited, o.onMessageEdited),
		o.channel.On(push.EventMessageDeleted, o.onMessageDeleted),
		o.channel.On(push.EventUserTyping, o.onUserTyping),
		o.channel.On(push.EventUserOnline, o.onUserOnline),
		o.channel.On(push.EventUserOffline, o.onUserOffline),
		o.channel.On(push.EventConversationCreated, o.onConversationCreated),
		o.channel.On(push.EventConversationUpdated, o.onConversationUpdated),
	}
}

func (o *Orchestrator) onReceiveMessage(payload json.RawMessage) {
	m, err := rest.DecodeMessage(payload)
	if err != nil {
		o.logger.Warn("bad ReceiveMessage payload", zap.Error(err))
		return
	}
	o.states.Dispatch(state.AddMessage{Message: m})
	o.bumpConversationPreview(m)

	// Reading an active conversation acknowledges it right away.
	if snap := o.states.Snapshot(); snap.Active != nil && snap.Active.ID == m.ConversationID {
		o.channel.MarkAsRead(m.ConversationID)
	}
}

// bumpConversationPreview refreshes the list entry for an incoming message:
// preview, timestamp, and the unread counter unless the conversation is on
// screen.
func (o *Orchestrator) bumpConversationPreview(m state.Message) {
	snap := o.states.Snapshot()
	patch := state.ConversationPatch{
		ID:                 m.ConversationID,
		LastMessagePreview: &m.Content,
		LastMessageAt:      &m.CreatedAt,
	}
	activeHere := snap.Active != nil && snap.Active.ID == m.ConversationID
	if !activeHere {
		for _, c := range snap.Conversations {
			if c.ID == m.ConversationID {
				unread := c.UnreadCount + 1
				patch.UnreadCount = &unread
				break
			}
		}
	}
	o.states.Dispatch(state.UpdateConversation{Patch: patch})
}

func (o *Orchestrator) onMessageEdited(payload json.RawMessage) {
	m, err := rest.DecodeMessage(payload)
	if err != nil {
		o.logger.Warn("bad MessageEdited payload", zap.Error(err))
		return
	}
	o.states.Dispatch(state.UpdateMessage{Message: m})
}

func (o *Orchestrator) onMessageDeleted(payload json.RawMessage) {
	var ref messageRefPayload
	if err := json.Unmarshal(payload, &ref); err != nil {
		o.logger.Warn("bad MessageDeleted payload", zap.Error(err))
		return
	}
	o.states.Dispatch(state.DeleteMessage{ID: ref.MessageID})
}

func (o *Orchestrator) onUserTyping(payload json.RawMessage) {
	var p typingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		o.logger.Warn("bad UserTyping payload", zap.Error(err))
		return
	}
	o.states.Dispatch(state.SetTyping{
		ConversationID: p.ConversationID,
		UserID:         p.UserID,
		IsTyping:       p.IsTyping,
	})
}

func (o *Orchestrator) onUserOnline(payload json.RawMessage) {
	var p presencePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		o.logger.Warn("bad UserOnline payload", zap.Error(err))
		return
	}
	o.states.Dispatch(state.SetUserOnline{UserID: p.UserID})
}

func (o *Orchestrator) onUserOffline(payload json.RawMessage) {
	var p presencePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		o.logger.Warn("bad UserOffline payload", zap.Error(err))
		return
	}
	o.states.Dispatch(state.SetUserOffline{UserID: p.UserID})
}

func (o *Orchestrator) onConversationCreated(payload json.RawMessage) {
	c, err := rest.DecodeConversation(payload)
	if err != nil {
		o.logger.Warn("bad ConversationCreated payload", zap.Error(err))
		return
	}
	o.states.Dispatch(state.AddConversation{Conversation: c})
}

func (o *Orchestrator) onConversationUpdated(payload json.RawMessage) {
	c, err := rest.DecodeConversation(payload)
	if err != nil {
		o.logger.Warn("bad ConversationUpdated payload", zap.Error(err))
		return
	}
	o.states.Dispatch(state.UpdateConversation{Patch: state.ConversationPatch{
		ID:                 c.ID,
		DisplayName:        &c.DisplayName,
		LastMessagePreview: &c.LastMessagePreview,
		LastMessageAt:      &c.LastMessageAt,
		UnreadCount:        &c.UnreadCount,
		IsPinned:           &c.IsPinned,
		IsMuted:            &c.IsMuted,
		Participants:       c.Participants,
	}})
}

// watchOutbox folds outbox delivery results back into the window: the
// optimistic entry is swapped for the acked server message, or flagged failed.
func (o *Orchestrator) watchOutbox(ch <-chan bus.Event) {
	defer o.wg.Done()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			switch ev.Kind {
			case "message.send_ack":
				ack, ok := ev.Payload.(outbox.Ack)
				if !ok {
					continue
				}
				o.states.Dispatch(state.ReplaceMessage{ID: ack.ClientMsgID, Message: ack.Message})
				o.bumpConversationPreview(ack.Message)
			case "message.send_failed":
				fail, ok := ev.Payload.(outbox.Failure)
				if !ok {
					continue
				}
				o.markSendFailed(fail.ClientMsgID)
			}
		case <-o.closed:
			return
		}
	}
}

func (o *Orchestrator) markSendFailed(clientMsgID string) {
	snap := o.states.Snapshot()
	for _, m := range snap.Window.Messages {
		if m.ID == clientMsgID {
			m.Status = state.StatusFailed
			o.states.Dispatch(state.UpdateMessage{Message: m})
			return
		}
	}
}
