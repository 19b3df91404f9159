package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shanialy/HRM/internal/core/domain"
)

const pgUniqueViolation = "23505"

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

/*
	CREATE TABLE conversations (
		id                UUID PRIMARY KEY,
		user_a            UUID NOT NULL REFERENCES users(id),
		user_b            UUID NOT NULL REFERENCES users(id),
		last_message      TEXT NOT NULL DEFAULT '',
		last_message_type TEXT NOT NULL DEFAULT 'TEXT',
		last_message_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		is_disabled       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	-- at most one live conversation per unordered pair
	CREATE UNIQUE INDEX idx_conversations_pair
		ON conversations (least(user_a, user_b), greatest(user_a, user_b))
		WHERE NOT is_disabled;

	CREATE INDEX idx_conversations_activity
		ON conversations (last_message_at DESC, id DESC);
*/

const conversationColumns = `id, user_a, user_b, last_message, last_message_type, last_message_at, is_disabled, created_at`

func scanConversation(row *sql.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(
		&c.ID,
		&c.UserA,
		&c.UserB,
		&c.LastMessage,
		&c.LastMessageType,
		&c.LastMessageAt,
		&c.IsDisabled,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	exec := GetExecutor(ctx, r.db)
	row := exec.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1 AND NOT is_disabled`, id)
	return scanConversation(row)
}

func (r *ConversationRepo) FindByPair(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	exec := GetExecutor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE least(user_a, user_b) = least($1::uuid, $2::uuid)
		  AND greatest(user_a, user_b) = greatest($1::uuid, $2::uuid)
		  AND NOT is_disabled
	`, a, b)
	return scanConversation(row)
}

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	exec := GetExecutor(ctx, r.db)
	err := exec.QueryRowContext(ctx, `
		INSERT INTO conversations (id, user_a, user_b, last_message, last_message_type, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`,
		c.ID,
		c.UserA,
		c.UserB,
		c.LastMessage,
		c.LastMessageType,
		c.LastMessageAt,
	).Scan(&c.CreatedAt)
	// idx_conversations_pair fires when a concurrent create won the pair.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrConversationExists
	}
	return err
}

// UpdatePreview is a single statement so concurrent sends race safely at the
// store: the losing write only leaves the preview momentarily stale.
func (r *ConversationRepo) UpdatePreview(
	ctx context.Context,
	id uuid.UUID,
	preview string,
	t domain.MessageType,
	at time.Time,
) error {
	exec := GetExecutor(ctx, r.db)
	result, err := exec.ExecContext(ctx, `
		UPDATE conversations
		SET last_message = $2, last_message_type = $3, last_message_at = $4
		WHERE id = $1
	`, id, preview, t, at)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepo) ListByParticipant(
	ctx context.Context,
	userID uuid.UUID,
	offset, limit int,
) ([]domain.Conversation, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE (user_a = $1 OR user_b = $1) AND NOT is_disabled
		ORDER BY last_message_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var convs []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(
			&c.ID,
			&c.UserA,
			&c.UserB,
			&c.LastMessage,
			&c.LastMessageType,
			&c.LastMessageAt,
			&c.IsDisabled,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (r *ConversationRepo) ListIDsByParticipant(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT id FROM conversations
		WHERE (user_a = $1 OR user_b = $1) AND NOT is_disabled
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
