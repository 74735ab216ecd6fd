// Package postgres provides the PostgreSQL implementation of the inbox repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerhub/notify/internal/inbox"
	"github.com/partnerhub/notify/internal/outbox"
)

// Repository implements inbox.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateWithDelivery inserts the inbox item and its INBOX outbox record in one
// transaction. A dedupe conflict on the outbox row rolls back both inserts and
// returns outbox.ErrDuplicate.
func (r *Repository) CreateWithDelivery(ctx context.Context, item *inbox.Item, rec *outbox.Record) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	outboxQuery := `
		INSERT INTO outbox_records (id, channel, event_type, actor_id, target_user_id, title, content,
			related_object_type, related_object_id, status, retry_count, next_retry_at,
			error_message, dedupe_key, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (dedupe_key, channel, target_user_id) WHERE dedupe_key IS NOT NULL DO NOTHING
		RETURNING id
	`
	var outboxID string
	err = tx.QueryRow(ctx, outboxQuery,
		rec.ID,
		rec.Channel,
		rec.EventType,
		rec.ActorID,
		rec.TargetUserID,
		rec.Title,
		rec.Content,
		rec.RelatedObjectType,
		rec.RelatedObjectID,
		rec.Status,
		rec.RetryCount,
		rec.NextRetryAt,
		rec.ErrorMessage,
		rec.DedupeKey,
		rec.CreatedAt,
		rec.SentAt,
	).Scan(&outboxID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return outbox.ErrDuplicate
		}
		return fmt.Errorf("create inbox outbox record: %w", err)
	}

	itemQuery := `
		INSERT INTO inbox_items (id, user_id, category, title, content,
			related_object_type, related_object_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, itemQuery,
		item.ID,
		item.UserID,
		item.Category,
		item.Title,
		item.Content,
		item.RelatedObjectType,
		item.RelatedObjectID,
		item.IsRead,
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create inbox item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// List returns a page of the user's inbox items, newest first.
func (r *Repository) List(ctx context.Context, userID string, filter inbox.ListFilter) ([]inbox.Item, int64, error) {
	where := `WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.UnreadOnly {
		where += " AND is_read = false"
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM inbox_items `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count inbox items: %w", err)
	}

	args = append(args, filter.PageSize, filter.Offset())
	query := fmt.Sprintf(`
		SELECT id, user_id, category, title, content, related_object_type, related_object_id, is_read, created_at
		FROM inbox_items %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list inbox items: %w", err)
	}
	defer rows.Close()

	items := make([]inbox.Item, 0)
	for rows.Next() {
		var item inbox.Item
		err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.Category,
			&item.Title,
			&item.Content,
			&item.RelatedObjectType,
			&item.RelatedObjectID,
			&item.IsRead,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan inbox item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate inbox items: %w", err)
	}

	return items, total, nil
}

// UnreadCount returns the number of unread items for the user.
func (r *Repository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM inbox_items WHERE user_id = $1 AND is_read = false`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread items: %w", err)
	}
	return count, nil
}

// MarkRead flags one of the user's items as read.
func (r *Repository) MarkRead(ctx context.Context, userID, itemID string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE inbox_items SET is_read = true WHERE id = $1 AND user_id = $2`,
		itemID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark item read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return inbox.ErrNotFound
	}
	return nil
}

// MarkAllRead flags every unread item of the user and returns the count.
func (r *Repository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE inbox_items SET is_read = true WHERE user_id = $1 AND is_read = false`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return result.RowsAffected(), nil
}
