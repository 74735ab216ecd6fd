package email

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/partnerhub/notify/internal/outbox"
)

// DeliveryStore persists the delivery state of outbox records.
type DeliveryStore interface {
	UpdateDeliveryState(ctx context.Context, rec *outbox.Record) error
}

// DefaultSendTimeout bounds one transport call so a stuck connection cannot
// starve the worker.
const DefaultSendTimeout = 30 * time.Second

// Deliverer performs single email delivery attempts and records the outcome
// on the outbox record. Every transport error is treated as retryable up to
// the ceiling; the record always ends an attempt self-describing
// (status, retry count, next attempt, error message).
type Deliverer struct {
	store    DeliveryStore
	resolver AddressResolver
	sender   Sender
	timeout  time.Duration
	now      func() time.Time
}

// NewDeliverer creates a new deliverer. A non-positive timeout falls back to
// DefaultSendTimeout.
func NewDeliverer(store DeliveryStore, resolver AddressResolver, sender Sender, timeout time.Duration) *Deliverer {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Deliverer{
		store:    store,
		resolver: resolver,
		sender:   sender,
		timeout:  timeout,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Deliver performs one send attempt for a single outbox record.
func (d *Deliverer) Deliver(ctx context.Context, rec *outbox.Record) error {
	addr, err := d.resolver.EmailAddress(ctx, rec.TargetUserID)
	if err != nil {
		return d.recordFailure(ctx, []*outbox.Record{rec}, err)
	}

	msg := Message{
		To:       addr,
		Subject:  rec.Title,
		HTMLBody: renderHTML(rec.Title, rec.Content),
		TextBody: rec.Content,
	}

	start := d.now()
	err = d.send(ctx, msg)
	recordSendDuration(time.Since(start))

	if err != nil {
		return d.recordFailure(ctx, []*outbox.Record{rec}, err)
	}
	return d.recordSuccess(ctx, []*outbox.Record{rec})
}

// DeliverDigest sends one combined email covering the given records, in
// order, and records the shared outcome on every one of them.
func (d *Deliverer) DeliverDigest(ctx context.Context, userID string, records []*outbox.Record) error {
	if len(records) == 0 {
		return nil
	}

	addr, err := d.resolver.EmailAddress(ctx, userID)
	if err != nil {
		return d.recordFailure(ctx, records, err)
	}

	digest := BuildDigest(records)
	msg := Message{
		To:       addr,
		Subject:  digest.Subject,
		HTMLBody: digest.HTMLBody,
		TextBody: digest.TextBody,
	}

	start := d.now()
	err = d.send(ctx, msg)
	recordSendDuration(time.Since(start))
	recordDigestFlush(len(records))

	if err != nil {
		return d.recordFailure(ctx, records, err)
	}
	return d.recordSuccess(ctx, records)
}

func (d *Deliverer) send(ctx context.Context, msg Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.sender.Send(sendCtx, msg)
}

func (d *Deliverer) recordSuccess(ctx context.Context, records []*outbox.Record) error {
	now := d.now()
	for _, rec := range records {
		rec.MarkSent(now)
		if err := d.store.UpdateDeliveryState(ctx, rec); err != nil {
			slog.Error("failed to mark record sent", "record_id", rec.ID, "error", err)
		}
		recordEmailOutcome("success")
	}
	return nil
}

func (d *Deliverer) recordFailure(ctx context.Context, records []*outbox.Record, sendErr error) error {
	now := d.now()
	retryable := isRetryableError(sendErr)
	for _, rec := range records {
		if retryable {
			rec.MarkFailed(now, sendErr)
		} else {
			rec.MarkFailedPermanent(now, sendErr)
		}
		if err := d.store.UpdateDeliveryState(ctx, rec); err != nil {
			slog.Error("failed to mark record failed", "record_id", rec.ID, "error", err)
		}

		if rec.Terminal() {
			recordEmailOutcome("exhausted")
			slog.Warn("email delivery exhausted retries",
				"record_id", rec.ID,
				"target_user_id", rec.TargetUserID,
				"error", sendErr,
			)
		} else {
			recordEmailOutcome("retry")
			slog.Info("email delivery scheduled for retry",
				"record_id", rec.ID,
				"attempt", rec.RetryCount,
				"next_retry_at", rec.NextRetryAt,
			)
		}
	}
	return sendErr
}

// isRetryableError reports whether another attempt may succeed. Errors
// default to retryable; a transport can wrap one in a non-retryable
// RetryableError to fail the record outright.
func isRetryableError(err error) bool {
	var re *RetryableError
	if errors.As(err, &re) {
		return re.IsRetryable()
	}
	return true
}

// RetryableError wraps an error and marks it as retryable or not.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable returns whether the error is retryable.
func (e *RetryableError) IsRetryable() bool {
	return e.Retryable
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError creates a non-retryable error.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}
