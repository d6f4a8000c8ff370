package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codequest-dev/codequest/internal/domain"
)

// MessageStore implements admin-message persistence backed by Postgres.
type MessageStore struct {
	pool *pgxpool.Pool
}

// NewMessageStore creates a new Postgres-backed message store.
func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

// Create inserts a new message.
func (s *MessageStore) Create(ctx context.Context, m *domain.AdminMessage) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_messages (id, from_admin_id, to_user_id, message, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.FromAdminID, m.ToUserID, m.Message, string(m.Status), m.SentAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListForUser returns a user's inbox, newest first.
func (s *MessageStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.AdminMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, from_admin_id, to_user_id, message, status, sent_at
		FROM admin_messages WHERE to_user_id = $1 ORDER BY sent_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*domain.AdminMessage
	for rows.Next() {
		var m domain.AdminMessage
		var status string
		if err := rows.Scan(&m.ID, &m.FromAdminID, &m.ToUserID, &m.Message,
			&status, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Status = domain.MessageStatus(status)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// ListRecent returns the most recently sent messages across all users,
// newest first.
func (s *MessageStore) ListRecent(ctx context.Context, limit int) ([]*domain.AdminMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, from_admin_id, to_user_id, message, status, sent_at
		FROM admin_messages
		ORDER BY sent_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.AdminMessage
	for rows.Next() {
		var m domain.AdminMessage
		var status string
		if err := rows.Scan(&m.ID, &m.FromAdminID, &m.ToUserID, &m.Message, &status, &m.SentAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Status = domain.MessageStatus(status)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// MarkRead flips a message in the user's inbox to read. Marking someone
// else's message is a not-found, not a forbidden, so IDs stay unguessable.
func (s *MessageStore) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE admin_messages SET status = 'read'
		WHERE id = $1 AND to_user_id = $2`,
		id, userID)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// UnreadCount returns the number of unread messages in a user's inbox.
func (s *MessageStore) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	row := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM admin_messages WHERE to_user_id = $1 AND status = 'sent'",
		userID)
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}
