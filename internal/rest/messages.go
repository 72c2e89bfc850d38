package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/thinhng24/CollabSphere-sub001/internal/state"
)

type attachmentDTO struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

type messageDTO struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Content        string         `json:"content"`
	Type           string         `json:"type"`
	CreatedAt      time.Time      `json:"createdAt"`
	EditedAt       *time.Time     `json:"editedAt"`
	IsDeleted      bool           `json:"isDeleted"`
	Attachment     *attachmentDTO `json:"attachment"`
}

func (d messageDTO) toMessage() state.Message {
	m := state.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Content:        d.Content,
		Type:           d.Type,
		CreatedAt:      d.CreatedAt,
		EditedAt:       d.EditedAt,
		IsDeleted:      d.IsDeleted,
	}
	if d.Attachment != nil {
		m.Attachment = &state.Attachment{
			URL:      d.Attachment.URL,
			FileName: d.Attachment.FileName,
			Size:     d.Attachment.Size,
		}
	}
	return m
}

// DecodeMessage decodes a server message payload. Push events reuse the REST
// wire shape.
func DecodeMessage(data []byte) (state.Message, error) {
	var dto messageDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return state.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return dto.toMessage(), nil
}

// MessagePage is one page of history, oldest to newest.
type MessagePage struct {
	Messages   []state.Message
	HasMore    bool
	NextCursor string
}

type messagePageDTO struct {
	Messages   []messageDTO `json:"messages"`
	HasMore    bool         `json:"hasMore"`
	NextCursor string       `json:"nextCursor"`
}

// GetMessagesBefore fetches the page of messages before cursor (empty cursor
// means the newest page).
func (c *Client) GetMessagesBefore(ctx context.Context, conversationID, cursor string, limit int) (MessagePage, error) {
	if limit <= 0 {
		limit = 50
	}
	path := fmt.Sprintf("/conversations/%s/messages?limit=%d", conversationID, limit)
	if cursor != "" {
		path += "&before=" + url.QueryEscape(cursor)
	}

	var dto messagePageDTO
	if err := c.do(ctx, http.MethodGet, path, nil, &dto, true); err != nil {
		return MessagePage{}, err
	}

	page := MessagePage{HasMore: dto.HasMore, NextCursor: dto.NextCursor}
	page.Messages = make([]state.Message, len(dto.Messages))
	for i, d := range dto.Messages {
		page.Messages[i] = d.toMessage()
	}
	return page, nil
}

// SendMessage posts a message. clientMessageID lets the server deduplicate
// outbox retries.
func (c *Client) SendMessage(ctx context.Context, conversationID, clientMessageID, content, msgType string) (state.Message, error) {
	var dto messageDTO
	err := c.do(ctx, http.MethodPost, "/conversations/"+conversationID+"/messages", map[string]string{
		"clientMessageId": clientMessageID,
		"content":         content,
		"type":            msgType,
	}, &dto, true)
	if err != nil {
		return state.Message{}, err
	}
	return dto.toMessage(), nil
}

// EditMessage replaces a message's content.
func (c *Client) EditMessage(ctx context.Context, conversationID, messageID, content string) (state.Message, error) {
	var dto messageDTO
	err := c.do(ctx, http.MethodPut, "/conversations/"+conversationID+"/messages/"+messageID, map[string]string{
		"content": content,
	}, &dto, true)
	if err != nil {
		return state.Message{}, err
	}
	return dto.toMessage(), nil
}

// DeleteMessage tombstones a message server-side.
func (c *Client) DeleteMessage(ctx context.Context, conversationID, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/conversations/"+conversationID+"/messages/"+messageID, nil, nil, true)
}
