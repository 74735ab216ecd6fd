package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/partnerhub/notify/internal/domain"
)

// Repository errors.
var (
	ErrNotFound  = errors.New("outbox record not found")
	ErrDuplicate = errors.New("outbox record already exists for this dedupe key")
)

// Repository defines data access for the outbox ledger.
type Repository interface {
	// Create inserts a new record. If the record carries a dedupe key and a
	// row for (dedupe_key, channel, target_user_id) already exists, Create
	// returns ErrDuplicate and writes nothing.
	Create(ctx context.Context, rec *Record) error

	GetByID(ctx context.Context, id string) (*Record, error)

	// UpdateDeliveryState persists status, retry bookkeeping and sent_at for
	// an existing record.
	UpdateDeliveryState(ctx context.Context, rec *Record) error

	// RequeueDue flips up to limit retryable FAILED records of the given
	// channel whose next_retry_at has passed back to PENDING, oldest due
	// first. Returns the number of requeued records.
	RequeueDue(ctx context.Context, channel domain.Channel, now time.Time, limit int) (int64, error)

	// FetchPending returns up to limit PENDING records of the given channel
	// that are due at now, oldest first. A PENDING record with a future
	// next_retry_at is held back (a batching window in flight).
	FetchPending(ctx context.Context, channel domain.Channel, now time.Time, limit int) ([]*Record, error)

	// RequeueAllFailed flips every retryable FAILED record of the given
	// channel back to PENDING, regardless of schedule.
	RequeueAllFailed(ctx context.Context, channel domain.Channel) (int64, error)

	List(ctx context.Context, filter Filter) ([]*Record, int64, error)
	Stats(ctx context.Context) (*Stats, error)
}
