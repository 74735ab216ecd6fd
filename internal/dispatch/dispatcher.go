package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/partnerhub/notify/internal/domain"
	"github.com/partnerhub/notify/internal/email"
	"github.com/partnerhub/notify/internal/inbox"
	"github.com/partnerhub/notify/internal/outbox"
	"github.com/partnerhub/notify/internal/prefs"
)

// Result reports how many durable rows one dispatch produced. Counts can be
// partial: per-recipient failures reduce them without failing the call.
type Result struct {
	InboxCount int `json:"inboxCount"`
	EmailCount int `json:"emailCount"`
}

// Preferences resolves a recipient's notification preferences.
type Preferences interface {
	Resolve(ctx context.Context, userID string) (*prefs.Preference, error)
}

// Enqueuer accepts email outbox records for windowed delivery.
type Enqueuer interface {
	Enqueue(userID string, eventType domain.EventType, rec *outbox.Record, window time.Duration)
}

// Dispatcher fans one event out to all its recipients: an inbox item plus an
// INBOX ledger row per recipient, and unless suppressed an EMAIL ledger row
// delivered immediately or through the batching coalescer.
type Dispatcher struct {
	inbox     inbox.Repository
	outbox    outbox.Repository
	prefs     Preferences
	policy    *email.Policy
	deliverer *email.Deliverer
	coalescer Enqueuer
	validate  *validator.Validate
	now       func() time.Time
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(
	inboxRepo inbox.Repository,
	outboxRepo outbox.Repository,
	preferences Preferences,
	policy *email.Policy,
	deliverer *email.Deliverer,
	coalescer Enqueuer,
) *Dispatcher {
	return &Dispatcher{
		inbox:     inboxRepo,
		outbox:    outboxRepo,
		prefs:     preferences,
		policy:    policy,
		deliverer: deliverer,
		coalescer: coalescer,
		validate:  validator.New(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch validates the event and fans it out to every recipient. One
// recipient's failure never blocks another's; the returned counts reflect
// what was actually written. Only when no durable row could be written at
// all does the error propagate, so the caller can roll back the triggering
// business change.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) (Result, error) {
	if err := event.Validate(d.validate); err != nil {
		recordDispatch("rejected")
		return Result{}, err
	}

	var result Result
	var firstErr error

	for _, userID := range event.TargetUserIDs {
		wrote, err := d.deliverInbox(ctx, event, userID)
		if err != nil {
			slog.Error("inbox fan-out failed for recipient",
				"event_type", event.EventType,
				"target_user_id", userID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if wrote {
			result.InboxCount++
			recordNotificationCreated(domain.ChannelInbox)
		}

		if event.SkipEmail {
			continue
		}

		wrote, err = d.deliverEmail(ctx, event, userID)
		if err != nil {
			slog.Error("email fan-out failed for recipient",
				"event_type", event.EventType,
				"target_user_id", userID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if wrote {
			result.EmailCount++
			recordNotificationCreated(domain.ChannelEmail)
		}
	}

	if result.InboxCount == 0 && result.EmailCount == 0 && firstErr != nil {
		recordDispatch("failed")
		return result, fmt.Errorf("dispatch wrote nothing: %w", firstErr)
	}

	recordDispatch("dispatched")
	slog.Info("event dispatched",
		"event_type", event.EventType,
		"recipients", len(event.TargetUserIDs),
		"inbox_count", result.InboxCount,
		"email_count", result.EmailCount,
	)
	return result, nil
}

// deliverInbox writes the inbox item and its INBOX ledger row in one
// transaction. The local write is the delivery, so the row is born SENT.
func (d *Dispatcher) deliverInbox(ctx context.Context, event *Event, userID string) (bool, error) {
	now := d.now()

	rec := &outbox.Record{
		Channel:           domain.ChannelInbox,
		EventType:         event.EventType,
		ActorID:           event.ActorID,
		TargetUserID:      userID,
		Title:             event.Title,
		Content:           event.Content,
		RelatedObjectType: event.RelatedObjectType,
		RelatedObjectID:   event.RelatedObjectID,
		Status:            outbox.StatusSent,
		DedupeKey:         event.DedupeKey,
		CreatedAt:         now,
		SentAt:            &now,
	}
	item := &inbox.Item{
		UserID:            userID,
		Category:          event.Category(),
		Title:             event.Title,
		Content:           event.Content,
		RelatedObjectType: event.RelatedObjectType,
		RelatedObjectID:   event.RelatedObjectID,
		CreatedAt:         now,
	}

	err := d.inbox.CreateWithDelivery(ctx, item, rec)
	if errors.Is(err, outbox.ErrDuplicate) {
		slog.Debug("skipping duplicate inbox delivery",
			"event_type", event.EventType,
			"target_user_id", userID,
			"dedupe_key", event.DedupeKey,
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// deliverEmail creates the EMAIL ledger row and routes it: immediate rows go
// through one synchronous attempt, windowed rows are parked until their
// window elapses and handed to the coalescer. Preferences only influence the
// batching mode; a disabled email preference does not suppress the send.
func (d *Dispatcher) deliverEmail(ctx context.Context, event *Event, userID string) (bool, error) {
	pref, err := d.prefs.Resolve(ctx, userID)
	if err != nil {
		slog.Warn("preference resolution failed, using defaults",
			"target_user_id", userID,
			"error", err,
		)
		pref = prefs.Default(userID)
	}

	window := d.policy.Plan(event.EventType, pref)
	now := d.now()

	rec := &outbox.Record{
		Channel:           domain.ChannelEmail,
		EventType:         event.EventType,
		ActorID:           event.ActorID,
		TargetUserID:      userID,
		Title:             event.Title,
		Content:           event.Content,
		RelatedObjectType: event.RelatedObjectType,
		RelatedObjectID:   event.RelatedObjectID,
		Status:            outbox.StatusPending,
		DedupeKey:         event.DedupeKey,
		CreatedAt:         now,
	}
	if window > 0 {
		// Holds the row out of the sweeper's reach while its window is
		// open; if the process dies before the flush, the sweeper delivers
		// it once the window passes.
		due := now.Add(window)
		rec.NextRetryAt = &due
	}

	err = d.outbox.Create(ctx, rec)
	if errors.Is(err, outbox.ErrDuplicate) {
		slog.Debug("skipping duplicate email delivery",
			"event_type", event.EventType,
			"target_user_id", userID,
			"dedupe_key", event.DedupeKey,
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if window > 0 {
		d.coalescer.Enqueue(userID, event.EventType, rec, window)
		return true, nil
	}

	// Outcome bookkeeping lives on the row; a failed attempt is the
	// sweeper's problem, not the dispatcher's.
	if err := d.deliverer.Deliver(ctx, rec); err != nil {
		slog.Debug("immediate email attempt failed, scheduled for retry",
			"record_id", rec.ID,
			"error", err,
		)
	}
	return true, nil
}
