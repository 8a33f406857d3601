package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"edubot/internal/models"
)

type PostgresConversationRepo struct {
	pool *pgxpool.Pool
}

var _ ConversationStore = (*PostgresConversationRepo)(nil)

func NewPostgresConversationRepo(pool *pgxpool.Pool) *PostgresConversationRepo {
	return &PostgresConversationRepo{pool: pool}
}

func (r *PostgresConversationRepo) Append(ctx context.Context, userID string, msgs ...models.ChatMessage) ([]models.ChatMessage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "begin append")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO conversations (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "create conversation for %q", userID)
	}

	// Serialize appends per user so message pairs stay adjacent.
	_, err = tx.Exec(ctx, "SELECT 1 FROM conversations WHERE user_id = $1 FOR UPDATE", userID)
	if err != nil {
		return nil, errors.Wrapf(err, "lock conversation for %q", userID)
	}

	batch := &pgx.Batch{}
	for _, m := range msgs {
		if m.CreatedAt.IsZero() {
			batch.Queue(`INSERT INTO messages (user_id, role, content) VALUES ($1, $2, $3)`,
				userID, m.Role, m.Content)
		} else {
			batch.Queue(`INSERT INTO messages (user_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
				userID, m.Role, m.Content, m.CreatedAt)
		}
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, errors.Wrapf(err, "insert messages for %q", userID)
		}
	}

	history, err := loadMessages(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit append")
	}
	return history, nil
}

func (r *PostgresConversationRepo) Get(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM conversations WHERE user_id = $1)", userID,
	).Scan(&exists)
	if err != nil {
		return nil, errors.Wrapf(err, "lookup user %q", userID)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return loadMessages(ctx, r.pool, userID)
}

func (r *PostgresConversationRepo) Reset(ctx context.Context, userID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, errors.Wrap(err, "begin reset")
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM conversations WHERE user_id = $1)", userID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "lookup user %q", userID)
	}
	if !exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, "DELETE FROM messages WHERE user_id = $1", userID); err != nil {
		return false, errors.Wrapf(err, "reset conversation for %q", userID)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, errors.Wrap(err, "commit reset")
	}
	return true, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadMessages(ctx context.Context, q querier, userID string) ([]models.ChatMessage, error) {
	rows, err := q.Query(ctx, `
		SELECT role, content, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "load conversation for %q", userID)
	}
	defer rows.Close()

	out := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "iterate messages")
}
