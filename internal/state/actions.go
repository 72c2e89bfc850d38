package state

import "time"

// Action is the tagged union consumed by Reduce. The set of variants is
// closed; unknown implementations are ignored.
type Action interface {
	actionName() string
}

// SetConversations replaces the conversation list wholesale.
type SetConversations struct {
	Conversations []Conversation
}

// AddConversation inserts a new conversation. Position is normalized by the
// last-message sort, so insertion order is not significant.
type AddConversation struct {
	Conversation Conversation
}

// UpdateConversation merges a partial update by id and re-sorts the list.
// Nil fields are left untouched.
type UpdateConversation struct {
	Patch ConversationPatch
}

// ConversationPatch carries the changed fields of a conversation.
type ConversationPatch struct {
	ID                 string
	DisplayName        *string
	LastMessagePreview *string
	LastMessageAt      *time.Time
	UnreadCount        *int
	IsPinned           *bool
	IsMuted            *bool
	Participants       []Participant
}

// SetActiveConversation switches the active conversation (nil deactivates).
// The message window is discarded and pagination restarts from the newest page.
type SetActiveConversation struct {
	Detail *ConversationDetail
}

// AddMessage appends a message to the active window. Duplicate ids are
// no-ops, which makes reconnect replays harmless.
type AddMessage struct {
	Message Message
}

// UpdateMessage replaces a window message by id; absent ids are ignored.
type UpdateMessage struct {
	Message Message
}

// ReplaceMessage swaps a window message (by its pre-ack local id) for the
// server-acknowledged message. If the server copy already arrived over the
// push channel the local entry is simply dropped. Absent ids are ignored.
type ReplaceMessage struct {
	ID      string
	Message Message
}

// DeleteMessage tombstones a window message by id; absent ids are ignored.
type DeleteMessage struct {
	ID string
}

// PrependMessages prepends an older page to the window ("load older").
// The existing suffix is never reordered.
type PrependMessages struct {
	Messages []Message
	HasMore  bool
	Cursor   string
}

// SetTyping adds or removes a typing indicator keyed by (conversation, user).
type SetTyping struct {
	ConversationID string
	UserID         string
	IsTyping       bool
}

// SetUserOnline marks a user online. Idempotent.
type SetUserOnline struct {
	UserID string
}

// SetUserOffline marks a user offline. Idempotent.
type SetUserOffline struct {
	UserID string
}

func (SetConversations) actionName() string       { return "set_conversations" }
func (AddConversation) actionName() string        { return "add_conversation" }
func (UpdateConversation) actionName() string     { return "update_conversation" }
func (SetActiveConversation) actionName() string  { return "set_active_conversation" }
func (AddMessage) actionName() string             { return "add_message" }
func (UpdateMessage) actionName() string          { return "update_message" }
func (ReplaceMessage) actionName() string         { return "replace_message" }
func (DeleteMessage) actionName() string          { return "delete_message" }
func (PrependMessages) actionName() string        { return "prepend_messages" }
func (SetTyping) actionName() string              { return "set_typing" }
func (SetUserOnline) actionName() string          { return "set_user_online" }
func (SetUserOffline) actionName() string         { return "set_user_offline" }
