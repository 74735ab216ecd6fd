package inbox

import (
	"context"

	"github.com/partnerhub/notify/internal/outbox"
)

// Repository defines data access for inbox items.
type Repository interface {
	// CreateWithDelivery inserts the inbox item and its INBOX outbox record
	// in a single transaction. If the outbox record carries a dedupe key that
	// is already recorded for this recipient and channel, nothing is written
	// and outbox.ErrDuplicate is returned.
	CreateWithDelivery(ctx context.Context, item *Item, rec *outbox.Record) error

	List(ctx context.Context, userID string, filter ListFilter) ([]Item, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)

	// MarkRead flags one item read. Items belonging to other users are
	// invisible: the call returns ErrNotFound.
	MarkRead(ctx context.Context, userID, itemID string) error

	// MarkAllRead flags every unread item of the user and returns the count.
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}
