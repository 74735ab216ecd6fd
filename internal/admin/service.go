// Package admin exposes the operator reconciliation surface over the outbox
// ledger.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/partnerhub/notify/internal/dispatch"
	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/email"
	"github.com/partnerhub/notify/internal/outbox"
)

// ErrNotRetryable is returned when a manual retry targets a record that is
// not a FAILED email delivery.
var ErrNotRetryable = errors.New("record is not a failed email delivery")

// Service implements the reconciliation operations.
type Service struct {
	outbox     outbox.Repository
	deliverer  *email.Deliverer
	dispatcher *dispatch.Dispatcher
}

// NewService creates a new admin service.
func NewService(outboxRepo outbox.Repository, deliverer *email.Deliverer, dispatcher *dispatch.Dispatcher) *Service {
	return &Service{
		outbox:     outboxRepo,
		deliverer:  deliverer,
		dispatcher: dispatcher,
	}
}

// List returns a page of outbox records matching the filter.
func (s *Service) List(ctx context.Context, filter outbox.Filter) ([]*outbox.Record, int64, error) {
	return s.outbox.List(ctx, filter)
}

// Stats returns ledger totals by channel and status.
func (s *Service) Stats(ctx context.Context) (*outbox.Stats, error) {
	return s.outbox.Stats(ctx)
}

// Retry performs one synchronous delivery attempt for a FAILED email record,
// terminal ones included. The updated record reflects the outcome.
func (s *Service) Retry(ctx context.Context, id string) (*outbox.Record, error) {
	rec, err := s.outbox.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.Channel != domain.ChannelEmail || rec.Status != outbox.StatusFailed {
		return nil, fmt.Errorf("%w: channel=%s status=%s", ErrNotRetryable, rec.Channel, rec.Status)
	}

	slog.Info("manual retry requested",
		"record_id", rec.ID,
		"target_user_id", rec.TargetUserID,
		"retry_count", rec.RetryCount,
	)

	// The explicit retry grants a fresh attempt budget; outcome bookkeeping
	// is persisted by the deliverer either way.
	rec.ResetForRetry()
	_ = s.deliverer.Deliver(ctx, rec)
	return rec, nil
}

// RetryAllFailed requeues every retryable FAILED email record and returns
// the count. The sweeper picks them up on its next pass.
func (s *Service) RetryAllFailed(ctx context.Context) (int64, error) {
	count, err := s.outbox.RequeueAllFailed(ctx, domain.ChannelEmail)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		slog.Info("bulk retry requeued failed email records", "count", count)
	}
	return count, nil
}

// Dispatch triggers an operator fan-out.
func (s *Service) Dispatch(ctx context.Context, event *dispatch.Event) (dispatch.Result, error) {
	return s.dispatcher.Dispatch(ctx, event)
}
