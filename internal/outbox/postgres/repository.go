// Package postgres provides the PostgreSQL implementation of the outbox repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/outbox"
)

// Repository implements outbox.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const recordColumns = `id, channel, event_type, actor_id, target_user_id, title, content,
	related_object_type, related_object_id, status, retry_count, next_retry_at,
	error_message, dedupe_key, created_at, sent_at`

// Create inserts a new outbox record. A dedupe-key conflict for the same
// channel and recipient inserts nothing and returns outbox.ErrDuplicate.
func (r *Repository) Create(ctx context.Context, rec *outbox.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO outbox_records (id, channel, event_type, actor_id, target_user_id, title, content,
			related_object_type, related_object_id, status, retry_count, next_retry_at,
			error_message, dedupe_key, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (dedupe_key, channel, target_user_id) WHERE dedupe_key IS NOT NULL DO NOTHING
		RETURNING id
	`
	var id string
	err := r.db.QueryRow(ctx, query,
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
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return outbox.ErrDuplicate
		}
		return fmt.Errorf("create outbox record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*outbox.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM outbox_records WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, outbox.ErrNotFound
		}
		return nil, fmt.Errorf("get outbox record: %w", err)
	}
	return rec, nil
}

// UpdateDeliveryState persists the mutable delivery fields of a record.
func (r *Repository) UpdateDeliveryState(ctx context.Context, rec *outbox.Record) error {
	query := `
		UPDATE outbox_records
		SET status = $2, retry_count = $3, next_retry_at = $4, error_message = $5, sent_at = $6
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.Status,
		rec.RetryCount,
		rec.NextRetryAt,
		rec.ErrorMessage,
		rec.SentAt,
	)
	if err != nil {
		return fmt.Errorf("update outbox record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return outbox.ErrNotFound
	}
	return nil
}

// RequeueDue flips due retryable FAILED records back to PENDING, oldest due first.
func (r *Repository) RequeueDue(ctx context.Context, channel domain.Channel, now time.Time, limit int) (int64, error) {
	query := `
		UPDATE outbox_records
		SET status = $1, next_retry_at = NULL
		WHERE id IN (
			SELECT id FROM outbox_records
			WHERE channel = $2 AND status = $3
			  AND retry_count < $4 AND next_retry_at <= $5
			ORDER BY next_retry_at
			LIMIT $6
		)
	`
	result, err := r.db.Exec(ctx, query,
		outbox.StatusPending, channel, outbox.StatusFailed, outbox.MaxRetries, now, limit)
	if err != nil {
		return 0, fmt.Errorf("requeue due records: %w", err)
	}
	return result.RowsAffected(), nil
}

// FetchPending returns up to limit due PENDING records of the channel, oldest
// first. Records parked behind a future next_retry_at (an open batching
// window) are held back.
func (r *Repository) FetchPending(ctx context.Context, channel domain.Channel, now time.Time, limit int) ([]*outbox.Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM outbox_records
		WHERE channel = $1 AND status = $2
		  AND (next_retry_at IS NULL OR next_retry_at <= $3)
		ORDER BY created_at
		LIMIT $4
	`
	rows, err := r.db.Query(ctx, query, channel, outbox.StatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// RequeueAllFailed flips every retryable FAILED record of the channel to PENDING.
func (r *Repository) RequeueAllFailed(ctx context.Context, channel domain.Channel) (int64, error) {
	query := `
		UPDATE outbox_records
		SET status = $1, next_retry_at = NULL
		WHERE channel = $2 AND status = $3 AND retry_count < $4
	`
	result, err := r.db.Exec(ctx, query,
		outbox.StatusPending, channel, outbox.StatusFailed, outbox.MaxRetries)
	if err != nil {
		return 0, fmt.Errorf("requeue all failed: %w", err)
	}
	return result.RowsAffected(), nil
}

// List returns records matching the filter plus the total match count.
func (r *Repository) List(ctx context.Context, filter outbox.Filter) ([]*outbox.Record, int64, error) {
	where := `WHERE created_at >= $1 AND created_at <= $2`
	args := []interface{}{filter.From, filter.To}

	if filter.Channel != "" {
		args = append(args, filter.Channel)
		where += fmt.Sprintf(" AND channel = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		where += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if filter.TargetUserID != "" {
		args = append(args, filter.TargetUserID)
		where += fmt.Sprintf(" AND target_user_id = $%d", len(args))
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM outbox_records ` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count outbox records: %w", err)
	}

	args = append(args, filter.PageSize, filter.Offset())
	listQuery := fmt.Sprintf(`
		SELECT %s FROM outbox_records %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, recordColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list outbox records: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// Stats aggregates the ledger by channel and status.
func (r *Repository) Stats(ctx context.Context) (*outbox.Stats, error) {
	stats := &outbox.Stats{}

	rows, err := r.db.Query(ctx, `
		SELECT channel, status, COUNT(*)
		FROM outbox_records
		GROUP BY channel, status
	`)
	if err != nil {
		return nil, fmt.Errorf("aggregate outbox stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var channel domain.Channel
		var status outbox.Status
		var count int64
		if err := rows.Scan(&channel, &status, &count); err != nil {
			return nil, fmt.Errorf("scan stats row: %w", err)
		}

		counts := &stats.Inbox
		if channel == domain.ChannelEmail {
			counts = &stats.Email
		}
		switch status {
		case outbox.StatusPending:
			counts.Pending = count
		case outbox.StatusSent:
			counts.Sent = count
		case outbox.StatusFailed:
			counts.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregate outbox stats: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE retry_count < $2),
			COUNT(*) FILTER (WHERE retry_count >= $2)
		FROM outbox_records
		WHERE status = $1
	`, outbox.StatusFailed, outbox.MaxRetries).Scan(&stats.Retryable, &stats.MaxRetriesReached)
	if err != nil {
		return nil, fmt.Errorf("aggregate failed stats: %w", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*outbox.Record, error) {
	var rec outbox.Record
	err := row.Scan(
		&rec.ID,
		&rec.Channel,
		&rec.EventType,
		&rec.ActorID,
		&rec.TargetUserID,
		&rec.Title,
		&rec.Content,
		&rec.RelatedObjectType,
		&rec.RelatedObjectID,
		&rec.Status,
		&rec.RetryCount,
		&rec.NextRetryAt,
		&rec.ErrorMessage,
		&rec.DedupeKey,
		&rec.CreatedAt,
		&rec.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanRecords(rows pgx.Rows) ([]*outbox.Record, error) {
	records := make([]*outbox.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outbox record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox records: %w", err)
	}
	return records, nil
}
