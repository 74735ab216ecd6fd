// Package postgres provides the PostgreSQL-backed recipient directory.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/partnerhub/notify/internal/email"
)

// AddressResolver looks up recipient email addresses in the user directory.
type AddressResolver struct {
	pool *pgxpool.Pool
}

// NewAddressResolver creates a new PostgreSQL address resolver.
func NewAddressResolver(pool *pgxpool.Pool) *AddressResolver {
	return &AddressResolver{pool: pool}
}

// EmailAddress returns the email address for a user.
// Returns email.ErrNoAddress if the user is unknown or has no address on file.
func (r *AddressResolver) EmailAddress(ctx context.Context, userID string) (string, error) {
	query := `SELECT email_address FROM user_directory WHERE user_id = $1`

	var address *string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&address)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", email.ErrNoAddress
	}
	if err != nil {
		return "", fmt.Errorf("query email address: %w", err)
	}
	if address == nil || *address == "" {
		return "", email.ErrNoAddress
	}

	return *address, nil
}
