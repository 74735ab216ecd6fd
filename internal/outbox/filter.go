package outbox

import (
	"time"

	"github.com/partnerhub/notify/internal/domain"
)

// Paging limits for the reconciliation listing.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	defaultWindow   = 7 * 24 * time.Hour
)

// Filter narrows a reconciliation listing. Zero values mean "any".
type Filter struct {
	Channel      domain.Channel
	Status       Status
	EventType    domain.EventType
	TargetUserID string
	From         time.Time
	To           time.Time
	Page         int
	PageSize     int
}

// Normalize applies the default time window (last 7 days) and paging bounds.
func (f Filter) Normalize(now time.Time) Filter {
	if f.From.IsZero() && f.To.IsZero() {
		f.To = now
		f.From = now.Add(-defaultWindow)
	}
	if f.To.IsZero() {
		f.To = now
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset returns the row offset for the normalized page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
