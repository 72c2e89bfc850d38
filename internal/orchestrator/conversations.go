package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thinhng24/CollabSphere-sub001/internal/state"
	"github.com/thinhng24/CollabSphere-sub001/internal/storage"
)

// SetActiveConversation switches the window to another conversation: joins
// its push group, loads the detail and the newest history page, and clears
// the unread counter. An empty id deactivates. Late responses belonging to a
// previously active conversation come back as ErrStaleResponse and leave the
// state untouched.
func (o *Orchestrator) SetActiveConversation(ctx context.Context, id string) error {
	g := o.gen.Add(1)

	if snap := o.states.Snapshot(); snap.Active != nil {
		o.typing.StopTyping(snap.Active.ID)
		o.channel.LeaveConversation(snap.Active.ID)
	}
	if id == "" {
		o.states.Dispatch(state.SetActiveConversation{Detail: nil})
		return nil
	}

	o.channel.JoinConversation(id)

	detail, err := o.api.GetConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", id, err)
	}
	if o.gen.Load() != g {
		return ErrStaleResponse
	}
	o.states.Dispatch(state.SetActiveConversation{Detail: detail})

	page, err := o.api.GetMessagesBefore(ctx, id, "", pageSize)
	if err != nil {
		return fmt.Errorf("load messages for %s: %w", id, err)
	}
	if o.gen.Load() != g {
		return ErrStaleResponse
	}
	o.states.Dispatch(state.PrependMessages{
		Messages: page.Messages,
		HasMore:  page.HasMore,
		Cursor:   page.NextCursor,
	})

	o.acknowledgeRead(ctx, id)
	return nil
}

// LoadOlderMessages fetches the page before the current window. No-op when
// nothing is active or the history is exhausted.
func (o *Orchestrator) LoadOlderMessages(ctx context.Context) error {
	snap := o.states.Snapshot()
	if snap.Active == nil || !snap.Window.HasMore {
		return nil
	}
	g := o.gen.Load()

	page, err := o.api.GetMessagesBefore(ctx, snap.Active.ID, snap.Window.Cursor, pageSize)
	if err != nil {
		return fmt.Errorf("load older messages: %w", err)
	}
	if o.gen.Load() != g {
		return ErrStaleResponse
	}
	o.states.Dispatch(state.PrependMessages{
		Messages: page.Messages,
		HasMore:  page.HasMore,
		Cursor:   page.NextCursor,
	})
	return nil
}

// SendMessage queues a message for delivery and shows it immediately with a
// sending status. Returns the client-side message id the ack will replace.
func (o *Orchestrator) SendMessage(conversationID, content string) (string, error) {
	clientMsgID := uuid.New().String()
	err := o.db.EnqueueOutbox(&storage.OutboxEntry{
		ClientMsgID:    clientMsgID,
		ConversationID: conversationID,
		Content:        content,
		MessageType:    "text",
	})
	if err != nil {
		return "", fmt.Errorf("queue message: %w", err)
	}

	o.typing.StopTyping(conversationID)

	now := time.Now()
	o.states.Dispatch(state.AddMessage{Message: state.Message{
		ID:             clientMsgID,
		ConversationID: conversationID,
		Content:        content,
		Type:           "text",
		Status:         state.StatusSending,
		CreatedAt:      now,
	}})
	o.states.Dispatch(state.UpdateConversation{Patch: state.ConversationPatch{
		ID:                 conversationID,
		LastMessagePreview: &content,
		LastMessageAt:      &now,
	}})
	return clientMsgID, nil
}

// EditMessage edits a sent message and applies the server's copy to the
// window. A rest.ErrNotFound (already deleted) goes straight to the caller.
func (o *Orchestrator) EditMessage(ctx context.Context, conversationID, messageID, content string) error {
	m, err := o.api.EditMessage(ctx, conversationID, messageID, content)
	if err != nil {
		return fmt.Errorf("edit message %s: %w", messageID, err)
	}
	o.states.Dispatch(state.UpdateMessage{Message: m})
	return nil
}

// DeleteMessage deletes a message server-side and tombstones it locally.
func (o *Orchestrator) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	if err := o.api.DeleteMessage(ctx, conversationID, messageID); err != nil {
		return fmt.Errorf("delete message %s: %w", messageID, err)
	}
	o.states.Dispatch(state.DeleteMessage{ID: messageID})
	return nil
}

// CreateConversation starts a conversation and adds it to the list.
func (o *Orchestrator) CreateConversation(ctx context.Context, kind state.ConversationKind, displayName string, participantIDs []string) (state.Conversation, error) {
	c, err := o.api.CreateConversation(ctx, kind, displayName, participantIDs)
	if err != nil {
		return state.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	o.states.Dispatch(state.AddConversation{Conversation: c})
	return c, nil
}

// NotifyTyping records local keystroke activity for the debouncer.
func (o *Orchestrator) NotifyTyping(conversationID string) {
	o.typing.NotifyActivity(conversationID)
}

// acknowledgeRead clears the unread counter locally and on the server.
func (o *Orchestrator) acknowledgeRead(ctx context.Context, conversationID string) {
	o.channel.MarkAsRead(conversationID)
	if err := o.api.MarkRead(ctx, conversationID); err != nil {
		o.logger.Debug("mark read failed", zap.Error(err), zap.String("conversation_id", conversationID))
	}
	zero := 0
	o.states.Dispatch(state.UpdateConversation{Patch: state.ConversationPatch{
		ID:          conversationID,
		UnreadCount: &zero,
	}})
}
