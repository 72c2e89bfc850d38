package state

import (
	"maps"
	"slices"
)

// Reduce applies one action to a snapshot and returns the next snapshot.
// It is pure and total: unknown actions and ids outside the current window
// are no-ops, since late events for an abandoned conversation are expected.
//
// Tombstone policy: a delete is durable. AddMessage for an id already present
// in the window is ignored even when that entry is tombstoned, so a reconnect
// replay cannot resurrect deleted content.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case SetConversations:
		s.Conversations = sortConversations(slices.Clone(act.Conversations))

	case AddConversation:
		// A created conversation arrives twice for its creator: once from the
		// local create call and once as the server echo. Replays keep one copy.
		if slices.ContainsFunc(s.Conversations, func(c Conversation) bool {
			return c.ID == act.Conversation.ID
		}) {
			return s
		}
		list := append(slices.Clone(s.Conversations), act.Conversation)
		s.Conversations = sortConversations(list)

	case UpdateConversation:
		i := slices.IndexFunc(s.Conversations, func(c Conversation) bool {
			return c.ID == act.Patch.ID
		})
		if i < 0 {
			return s
		}
		list := slices.Clone(s.Conversations)
		list[i] = mergeConversation(list[i], act.Patch)
		s.Conversations = sortConversations(list)

	case SetActiveConversation:
		s.Active = act.Detail
		s.Window = MessageWindow{}

	case AddMessage:
		if s.Active == nil || s.Active.ID != act.Message.ConversationID {
			return s
		}
		if messageIndex(s.Window.Messages, act.Message.ID) >= 0 {
			return s
		}
		w := s.Window
		w.Messages = append(slices.Clone(w.Messages), act.Message)
		s.Window = w

	case UpdateMessage:
		i := messageIndex(s.Window.Messages, act.Message.ID)
		if i < 0 {
			return s
		}
		w := s.Window
		w.Messages = slices.Clone(w.Messages)
		w.Messages[i] = act.Message
		s.Window = w

	case ReplaceMessage:
		i := messageIndex(s.Window.Messages, act.ID)
		if i < 0 {
			return s
		}
		w := s.Window
		w.Messages = slices.Clone(w.Messages)
		if j := messageIndex(w.Messages, act.Message.ID); j >= 0 && j != i {
			// Server copy already in the window; drop the local entry.
			w.Messages = append(w.Messages[:i], w.Messages[i+1:]...)
		} else {
			w.Messages[i] = act.Message
		}
		s.Window = w

	case DeleteMessage:
		i := messageIndex(s.Window.Messages, act.ID)
		if i < 0 {
			return s
		}
		w := s.Window
		w.Messages = slices.Clone(w.Messages)
		m := w.Messages[i]
		m.Content = ""
		m.Attachment = nil
		m.IsDeleted = true
		w.Messages[i] = m
		s.Window = w

	case PrependMessages:
		// Keep ids unique: a page entry already present in the window loses.
		page := make([]Message, 0, len(act.Messages))
		for _, m := range act.Messages {
			if messageIndex(s.Window.Messages, m.ID) < 0 {
				page = append(page, m)
			}
		}
		w := MessageWindow{
			Messages: append(page, s.Window.Messages...),
			HasMore:  act.HasMore,
			Cursor:   act.Cursor,
		}
		s.Window = w

	case SetTyping:
		key := TypingKey{ConversationID: act.ConversationID, UserID: act.UserID}
		_, present := s.Typing[key]
		if act.IsTyping == present {
			return s
		}
		typing := maps.Clone(s.Typing)
		if typing == nil {
			typing = map[TypingKey]struct{}{}
		}
		if act.IsTyping {
			typing[key] = struct{}{}
		} else {
			delete(typing, key)
		}
		s.Typing = typing

	case SetUserOnline:
		if _, ok := s.Online[act.UserID]; ok {
			return s
		}
		online := maps.Clone(s.Online)
		if online == nil {
			online = map[string]struct{}{}
		}
		online[act.UserID] = struct{}{}
		s.Online = online

	case SetUserOffline:
		if _, ok := s.Online[act.UserID]; !ok {
			return s
		}
		online := maps.Clone(s.Online)
		delete(online, act.UserID)
		s.Online = online
	}

	return s
}

// sortConversations orders by last message timestamp descending, in place.
// Zero timestamps sort last. Stable so equal timestamps keep their order.
func sortConversations(list []Conversation) []Conversation {
	slices.SortStableFunc(list, func(a, b Conversation) int {
		return b.LastMessageAt.Compare(a.LastMessageAt)
	})
	return list
}

func mergeConversation(c Conversation, p ConversationPatch) Conversation {
	if p.DisplayName != nil {
		c.DisplayName = *p.DisplayName
	}
	if p.LastMessagePreview != nil {
		c.LastMessagePreview = *p.LastMessagePreview
	}
	if p.LastMessageAt != nil {
		c.LastMessageAt = *p.LastMessageAt
	}
	if p.UnreadCount != nil {
		c.UnreadCount = *p.UnreadCount
	}
	if p.IsPinned != nil {
		c.IsPinned = *p.IsPinned
	}
	if p.IsMuted != nil {
		c.IsMuted = *p.IsMuted
	}
	if p.Participants != nil {
		c.Participants = p.Participants
	}
	return c
}

func messageIndex(msgs []Message, id string) int {
	return slices.IndexFunc(msgs, func(m Message) bool { return m.ID == id })
}
