// Package state holds the in-memory conversation snapshot for a session and
// the pure reducer that advances it. All mutation goes through dispatched
// actions; readers only ever see value snapshots.
package state

import "time"

// ConversationKind distinguishes direct and group conversations.
type ConversationKind string

const (
	KindPrivate ConversationKind = "private"
	KindGroup   ConversationKind = "group"
)

// Participant is a member of a conversation.
type Participant struct {
	ID          string
	DisplayName string
}

// Conversation is one entry in the conversation list.
type Conversation struct {
	ID                 string
	Kind               ConversationKind
	DisplayName        string
	LastMessagePreview string
	LastMessageAt      time.Time
	UnreadCount        int
	IsPinned           bool
	IsMuted            bool
	Participants       []Participant
}

// ConversationDetail is a Conversation plus the full roster and message count.
// Loaded lazily when a conversation becomes active, replaced wholesale on
// re-selection.
type ConversationDetail struct {
	Conversation
	Roster       []Participant
	MessageCount int
}

// Attachment describes a file attached to a message.
type Attachment struct {
	URL      string
	FileName string
	Size     int64
}

// Message delivery status for locally originated messages. Server-delivered
// messages carry an empty status.
const (
	StatusSending = "sending"
	StatusFailed  = "failed"
)

// Message is one message in the active window. A deleted message stays in the
// window as a tombstone: IsDeleted set, content cleared.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	Type           string
	Status         string
	CreatedAt      time.Time
	EditedAt       *time.Time
	IsDeleted      bool
	Attachment     *Attachment
}

// MessageWindow is the paged message sequence (oldest to newest) for the
// active conversation. Exactly one window is materialized at a time.
type MessageWindow struct {
	Messages []Message
	HasMore  bool
	Cursor   string
}

// TypingKey identifies a typing indicator entry.
type TypingKey struct {
	ConversationID string
	UserID         string
}

// State is an immutable snapshot of everything the sync engine tracks.
// Reduce never mutates a State in place; it returns an adjusted copy.
type State struct {
	Conversations []Conversation
	Active        *ConversationDetail
	Window        MessageWindow
	Typing        map[TypingKey]struct{}
	Online        map[string]struct{}
}

// NewState returns the initial empty snapshot.
func NewState() State {
	return State{
		Typing: map[TypingKey]struct{}{},
		Online: map[string]struct{}{},
	}
}
