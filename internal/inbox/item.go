// Package inbox provides the user-facing inbox projection of delivered
// notifications.
package inbox

import (
	"errors"
	"time"

	"github.com/partnerhub/notify/internal/domain"
)

// Repository errors.
var ErrNotFound = errors.New("inbox item not found")

// Item is a user-visible inbox entry. It is created atomically alongside its
// INBOX outbox record and is only ever mutated by the owning user's read
// actions.
type Item struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	Category          domain.Category `json:"category"`
	Title             string          `json:"title"`
	Content           string          `json:"content"`
	RelatedObjectType *string         `json:"related_object_type,omitempty"`
	RelatedObjectID   *string         `json:"related_object_id,omitempty"`
	IsRead            bool            `json:"is_read"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Paging limits for inbox listings.
const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListFilter narrows an inbox listing.
type ListFilter struct {
	Category   domain.Category
	UnreadOnly bool
	Page       int
	PageSize   int
}

// Normalize applies paging bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return f
}

// Offset returns the row offset for the normalized page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
