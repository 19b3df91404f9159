package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleEmployee Role = "EMPLOYEE"
	RoleClient   Role = "CLIENT"
)

// User is the HRM account record. Only the fields the chat subsystem needs
// are modeled here; the employee/client CRUD surface lives elsewhere.
type User struct {
	ID             uuid.UUID
	FirstName      string
	LastName       string
	Email          string
	PasswordHash   string
	Role           Role
	Department     string
	ProfilePicture string
	Status         string
	CreatedAt      time.Time
}

func (u *User) Active() bool { return u.Status == "ACTIVE" }

// Principal is the authenticated identity bound to a connection at handshake.
// It is immutable and travels through context, never as connection state.
type Principal struct {
	ID         uuid.UUID
	Role       Role
	Department string
}

type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeVideo MessageType = "VIDEO"
	MessageTypeAudio MessageType = "AUDIO"
	MessageTypeFile  MessageType = "FILE"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeFile:
		return true
	}
	return false
}

// Conversation is a persisted 2-party thread. The pair is stored as two
// columns; uniqueness of a live pair is enforced on (least, greatest) so
// participant order never matters.
type Conversation struct {
	ID              uuid.UUID
	UserA           uuid.UUID
	UserB           uuid.UUID
	LastMessage     string
	LastMessageType MessageType
	LastMessageAt   time.Time
	IsDisabled      bool
	CreatedAt       time.Time
}

func (c *Conversation) HasParticipant(id uuid.UUID) bool {
	return c.UserA == id || c.UserB == id
}

// OtherParticipant returns the peer of id within the conversation.
func (c *Conversation) OtherParticipant(id uuid.UUID) uuid.UUID {
	if c.UserA == id {
		return c.UserB
	}
	return c.UserA
}

// Message is an immutable entry in a conversation's log. Exactly one of
// Content/MediaURL is set, gated by Type. Read-state lives in the
// message_reads set and only ever grows; the sender is added at creation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Type           MessageType
	Content        *string
	MediaURL       *string
	CreatedAt      time.Time
}

// Preview is the denormalized text shown in conversation listings: the
// content for text messages, the literal type token otherwise.
func (m *Message) Preview() string {
	if m.Type == MessageTypeText && m.Content != nil {
		return *m.Content
	}
	return string(m.Type)
}

// UserSummary is the participant identity resolved into wire responses.
type UserSummary struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Email:          u.Email,
		Role:           u.Role,
		ProfilePicture: u.ProfilePicture,
	}
}
