// Package outbox provides the durable delivery ledger and its state machine.
package outbox

import (
	"time"

	"github.com/partnerhub/notify/internal/domain"
)

// Status represents the delivery state of an outbox record.
type Status string

// Delivery statuses.
const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// MaxRetries is the retry ceiling. A FAILED record at the ceiling is terminal
// until an administrator retries it explicitly.
const MaxRetries = 5

const (
	backoffBase = time.Minute
	backoffCap  = 24 * time.Hour
)

// Record is one delivery intent: (channel, recipient, event).
// Records are append-only; only delivery attempts and administrative
// retries mutate their state.
type Record struct {
	ID                string           `json:"id"`
	Channel           domain.Channel   `json:"channel"`
	EventType         domain.EventType `json:"event_type"`
	ActorID           *string          `json:"actor_id,omitempty"`
	TargetUserID      string           `json:"target_user_id"`
	Title             string           `json:"title"`
	Content           string           `json:"content"`
	RelatedObjectType *string          `json:"related_object_type,omitempty"`
	RelatedObjectID   *string          `json:"related_object_id,omitempty"`
	Status            Status           `json:"status"`
	RetryCount        int              `json:"retry_count"`
	NextRetryAt       *time.Time       `json:"next_retry_at,omitempty"`
	ErrorMessage      *string          `json:"error_message,omitempty"`
	DedupeKey         *string          `json:"dedupe_key,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	SentAt            *time.Time       `json:"sent_at,omitempty"`
}

// Backoff returns the retry delay after the given number of failed attempts:
// min(2^retryCount x 60s, 24h).
func Backoff(retryCount int) time.Duration {
	if retryCount >= 11 {
		// 2^11 minutes already exceeds the cap; avoids shift overflow.
		return backoffCap
	}
	delay := time.Duration(1<<uint(retryCount)) * backoffBase
	if delay > backoffCap {
		return backoffCap
	}
	return delay
}

// MarkSent transitions the record to its SENT terminal state.
func (r *Record) MarkSent(now time.Time) {
	r.Status = StatusSent
	r.SentAt = &now
	r.NextRetryAt = nil
	r.ErrorMessage = nil
}

// MarkFailed records a failed delivery attempt: the retry counter is
// incremented and the next attempt is scheduled with exponential backoff.
// At the retry ceiling the record becomes terminal (no next attempt).
func (r *Record) MarkFailed(now time.Time, sendErr error) {
	r.Status = StatusFailed
	r.RetryCount++
	msg := sendErr.Error()
	r.ErrorMessage = &msg

	if r.RetryCount >= MaxRetries {
		r.NextRetryAt = nil
		return
	}
	next := now.Add(Backoff(r.RetryCount))
	r.NextRetryAt = &next
}

// MarkFailedPermanent fails the record without scheduling another attempt,
// consuming the remaining retry budget. Used when the transport classifies
// an error as non-retryable.
func (r *Record) MarkFailedPermanent(now time.Time, sendErr error) {
	r.Status = StatusFailed
	r.RetryCount = MaxRetries
	r.NextRetryAt = nil
	msg := sendErr.Error()
	r.ErrorMessage = &msg
}

// Requeue flips a retryable FAILED record back to PENDING.
// Administrative retries may force-requeue terminal records.
func (r *Record) Requeue() {
	r.Status = StatusPending
	r.NextRetryAt = nil
}

// ResetForRetry grants a fresh attempt budget for an administrative retry.
// The retry counter starts over so the ceiling applies to the new cycle.
func (r *Record) ResetForRetry() {
	r.Requeue()
	r.RetryCount = 0
	r.ErrorMessage = nil
}

// Retryable reports whether the record failed but is still below the
// retry ceiling.
func (r *Record) Retryable() bool {
	return r.Status == StatusFailed && r.RetryCount < MaxRetries
}

// Terminal reports whether no further automatic transition applies.
func (r *Record) Terminal() bool {
	return r.Status == StatusSent || (r.Status == StatusFailed && r.RetryCount >= MaxRetries)
}
