package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/shanialy/HRM/internal/core/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

/*
	CREATE TABLE messages (
		id              UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id),
		sender_id       UUID NOT NULL REFERENCES users(id),
		message_type    TEXT NOT NULL,
		content         TEXT,
		media_url       TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK ((message_type = 'TEXT') = (content IS NOT NULL)),
		CHECK ((message_type <> 'TEXT') = (media_url IS NOT NULL))
	);

	CREATE INDEX idx_messages_conversation
		ON messages (conversation_id, created_at DESC, id DESC);

	-- readBy set; the sender's row is written at send time
	CREATE TABLE message_reads (
		message_id UUID NOT NULL REFERENCES messages(id),
		user_id    UUID NOT NULL REFERENCES users(id),
		read_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (message_id, user_id)
	);
*/

// Create appends the message and the sender's auto-read row. Callers run it
// inside the same transaction as the preview update.
func (r *MessageRepo) Create(ctx context.Context, m *domain.Message) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, message_type, content, media_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		m.ID,
		m.ConversationID,
		m.SenderID,
		m.Type,
		m.Content,
		m.MediaURL,
		m.CreatedAt,
	)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO message_reads (message_id, user_id) VALUES ($1, $2)
	`, m.ID, m.SenderID)
	return err
}

func (r *MessageRepo) ListByConversation(
	ctx context.Context,
	convID uuid.UUID,
	offset, limit int,
) ([]domain.Message, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, message_type, content, media_url, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`, convID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.Type,
			&m.Content,
			&m.MediaURL,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountUnread derives the count instead of keeping a running counter, so it
// cannot drift from the log.
func (r *MessageRepo) CountUnread(ctx context.Context, convID, userID uuid.UUID) (int, error) {
	exec := GetExecutor(ctx, r.db)
	var count int
	err := exec.QueryRowContext(ctx, `
		SELECT count(*)
		FROM messages m
		WHERE m.conversation_id = $1
		  AND m.sender_id <> $2
		  AND NOT EXISTS (
			SELECT 1 FROM message_reads r
			WHERE r.message_id = m.id AND r.user_id = $2
		  )
	`, convID, userID).Scan(&count)
	return count, err
}

func (r *MessageRepo) MarkRead(ctx context.Context, convID, userID uuid.UUID) error {
	exec := GetExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, `
		INSERT INTO message_reads (message_id, user_id)
		SELECT m.id, $2
		FROM messages m
		WHERE m.conversation_id = $1 AND m.sender_id <> $2
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, convID, userID)
	return err
}
