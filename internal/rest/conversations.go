package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/thinhng24/CollabSphere-sub001/internal/state"
)

type participantDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type conversationDTO struct {
	ID                 string           `json:"id"`
	Kind               string           `json:"kind"`
	DisplayName        string           `json:"displayName"`
	LastMessagePreview string           `json:"lastMessagePreview"`
	LastMessageAt      *time.Time       `json:"lastMessageAt"`
	UnreadCount        int              `json:"unreadCount"`
	IsPinned           bool             `json:"isPinned"`
	IsMuted            bool             `json:"isMuted"`
	Participants       []participantDTO `json:"participants"`
}

type conversationDetailDTO struct {
	conversationDTO
	Roster       []participantDTO `json:"roster"`
	MessageCount int              `json:"messageCount"`
}

func toParticipants(dtos []participantDTO) []state.Participant {
	if dtos == nil {
		return nil
	}
	out := make([]state.Participant, len(dtos))
	for i, d := range dtos {
		out[i] = state.Participant{ID: d.ID, DisplayName: d.DisplayName}
	}
	return out
}

func (d conversationDTO) toConversation() state.Conversation {
	c := state.Conversation{
		ID:                 d.ID,
		Kind:               state.ConversationKind(d.Kind),
		DisplayName:        d.DisplayName,
		LastMessagePreview: d.LastMessagePreview,
		UnreadCount:        d.UnreadCount,
		IsPinned:           d.IsPinned,
		IsMuted:            d.IsMuted,
		Participants:       toParticipants(d.Participants),
	}
	// Missing timestamps stay zero and sort last in the conversation list.
	if d.LastMessageAt != nil {
		c.LastMessageAt = *d.LastMessageAt
	}
	return c
}

// DecodeConversation decodes a server conversation payload. Push events reuse
// the REST wire shape.
func DecodeConversation(data []byte) (state.Conversation, error) {
	var dto conversationDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return state.Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	return dto.toConversation(), nil
}

// ListConversations returns the caller's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]state.Conversation, error) {
	var dtos []conversationDTO
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &dtos, true); err != nil {
		return nil, err
	}
	out := make([]state.Conversation, len(dtos))
	for i, d := range dtos {
		out[i] = d.toConversation()
	}
	return out, nil
}

// GetConversation loads the full detail for one conversation.
func (c *Client) GetConversation(ctx context.Context, id string) (*state.ConversationDetail, error) {
	var dto conversationDetailDTO
	if err := c.do(ctx, http.MethodGet, "/conversations/"+id, nil, &dto, true); err != nil {
		return nil, err
	}
	return &state.ConversationDetail{
		Conversation: dto.toConversation(),
		Roster:       toParticipants(dto.Roster),
		MessageCount: dto.MessageCount,
	}, nil
}

// CreateConversation starts a new private or group conversation.
func (c *Client) CreateConversation(ctx context.Context, kind state.ConversationKind, displayName string, participantIDs []string) (state.Conversation, error) {
	var dto conversationDTO
	err := c.do(ctx, http.MethodPost, "/conversations", map[string]any{
		"kind":           string(kind),
		"displayName":    displayName,
		"participantIds": participantIDs,
	}, &dto, true)
	if err != nil {
		return state.Conversation{}, err
	}
	return dto.toConversation(), nil
}

// MarkRead clears the unread counter for a conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/read", nil, nil, true)
}
