package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRepository resolves account identities.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// ConversationRepository handles the conversation lifecycle. All lookups
// exclude disabled conversations; listings order by last_message_at
// descending with id as the tie-break.
type ConversationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	// FindByPair resolves the unordered pair to its live conversation,
	// or ErrConversationNotFound.
	FindByPair(ctx context.Context, a, b uuid.UUID) (*Conversation, error)
	Create(ctx context.Context, c *Conversation) error
	// UpdatePreview is a single-statement last-writer-wins update of the
	// denormalized lastMessage fields.
	UpdatePreview(ctx context.Context, id uuid.UUID, preview string, t MessageType, at time.Time) error
	ListByParticipant(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Conversation, error)
	// ListIDsByParticipant feeds the room auto-join on connect.
	ListIDsByParticipant(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// MessageRepository handles the append-only message log and its read-state.
type MessageRepository interface {
	// Create appends the message and records the sender's auto-read row.
	Create(ctx context.Context, m *Message) error
	// ListByConversation returns messages newest-first.
	ListByConversation(ctx context.Context, convID uuid.UUID, offset, limit int) ([]Message, error)
	// CountUnread derives the unread count for userID: messages from other
	// senders that userID has not acknowledged.
	CountUnread(ctx context.Context, convID, userID uuid.UUID) (int, error)
	// MarkRead acknowledges every foreign message in the conversation for
	// userID. Idempotent; re-acknowledging is a no-op.
	MarkRead(ctx context.Context, convID, userID uuid.UUID) error
}
