package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Inbound events (client → server)
const (
	EventCreateConversation = "createConversation"
	EventConversations      = "conversations"
	EventMessage            = "message"
	EventGetMessages        = "getMessages"
	EventMarkAsRead         = "markAsRead"
)

// Outbound events (server → client)
const (
	EventConversationCreated = "conversationCreated"
	EventNewConversation     = "newConversation"
	EventConversationUpdated = "conversationUpdated"
	EventError               = "error"
)

// Envelope is the frame every client message arrives in. Data stays raw
// until the event name selects the payload variant to decode into.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutEnvelope is the server-side frame; Data is marshaled at send time.
type OutEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type CreateConversationRequest struct {
	ReceiverID string `json:"receiverId"`
}

func (r *CreateConversationRequest) Validate() (uuid.UUID, error) {
	id, err := uuid.Parse(r.ReceiverID)
	if err != nil {
		return uuid.Nil, Validation("receiverId is required")
	}
	return id, nil
}

type ListConversationsRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (r *ListConversationsRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = 10
	}
}

type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	MessageType    string `json:"messageType"`
	Content        string `json:"content,omitempty"`
	MediaURL       string `json:"mediaUrl,omitempty"`
}

// Validate enforces the content/mediaUrl exclusivity invariant before any
// store access and returns the parsed conversation id.
func (r *SendMessageRequest) Validate() (uuid.UUID, error) {
	cid, err := uuid.Parse(r.ConversationID)
	if err != nil {
		return uuid.Nil, Validation("conversationId is required")
	}
	t := MessageType(r.MessageType)
	if !t.Valid() {
		return uuid.Nil, Validation("unknown messageType")
	}
	if t == MessageTypeText {
		if r.Content == "" {
			return uuid.Nil, Validation("content is required for TEXT messages")
		}
		if r.MediaURL != "" {
			return uuid.Nil, Validation("mediaUrl must be empty for TEXT messages")
		}
		return cid, nil
	}
	if r.MediaURL == "" {
		return uuid.Nil, Validation("mediaUrl is required for " + r.MessageType + " messages")
	}
	if r.Content != "" {
		return uuid.Nil, Validation("content must be empty for " + r.MessageType + " messages")
	}
	return cid, nil
}

type GetMessagesRequest struct {
	ConversationID string `json:"conversationId"`
	Page           int    `json:"page"`
	Limit          int    `json:"limit"`
}

func (r *GetMessagesRequest) Validate() (uuid.UUID, error) {
	cid, err := uuid.Parse(r.ConversationID)
	if err != nil {
		return uuid.Nil, Validation("conversationId is required")
	}
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = 20
	}
	return cid, nil
}

type MarkAsReadRequest struct {
	ConversationID string `json:"conversationId"`
}

// ConversationView is a listing row with the peer resolved and the unread
// count computed for the caller.
type ConversationView struct {
	ID              uuid.UUID   `json:"id"`
	User            UserSummary `json:"user"`
	LastMessage     string      `json:"lastMessage"`
	LastMessageType MessageType `json:"lastMessageType"`
	LastMessageAt   time.Time   `json:"lastMessageAt"`
	UnreadCount     int         `json:"unreadCount"`
	Online          bool        `json:"online"`
}

// MessageView is the fully materialized message broadcast to a room.
type MessageView struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversationId"`
	Sender         UserSummary `json:"sender"`
	MessageType    MessageType `json:"messageType"`
	Content        *string     `json:"content"`
	MediaURL       *string     `json:"mediaUrl"`
	CreatedAt      time.Time   `json:"createdAt"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
