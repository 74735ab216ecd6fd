// Package postgres provides the PostgreSQL implementation of the preferences repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/prefs"
)

// Repository implements prefs.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get retrieves a user's preference row.
func (r *Repository) Get(ctx context.Context, userID string) (*prefs.Preference, error) {
	query := `
		SELECT user_id, email_enabled, batch_modes, created_at, updated_at
		FROM notification_preferences
		WHERE user_id = $1
	`
	var pref prefs.Preference
	var modesJSON []byte
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&pref.UserID,
		&pref.EmailEnabled,
		&modesJSON,
		&pref.CreatedAt,
		&pref.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, prefs.ErrNotFound
		}
		return nil, fmt.Errorf("get preference: %w", err)
	}

	pref.BatchModes = make(map[domain.EventType]prefs.BatchMode)
	if len(modesJSON) > 0 {
		if err := json.Unmarshal(modesJSON, &pref.BatchModes); err != nil {
			return nil, fmt.Errorf("decode batch modes: %w", err)
		}
	}
	return &pref, nil
}

// Upsert inserts or replaces a user's preference row.
func (r *Repository) Upsert(ctx context.Context, pref *prefs.Preference) error {
	modesJSON, err := json.Marshal(pref.BatchModes)
	if err != nil {
		return fmt.Errorf("encode batch modes: %w", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO notification_preferences (user_id, email_enabled, batch_modes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET email_enabled = EXCLUDED.email_enabled,
		    batch_modes = EXCLUDED.batch_modes,
		    updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRow(ctx, query,
		pref.UserID,
		pref.EmailEnabled,
		modesJSON,
		now,
	).Scan(&pref.CreatedAt, &pref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}
