// Package dispatch fans one business event out into per-recipient inbox and
// email deliveries.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/partnerhub/notify/internal/domain"
)

// ErrInvalidEvent is returned when an inbound event fails validation.
// Invalid events are rejected synchronously and never persisted.
var ErrInvalidEvent = errors.New("invalid notification event")

// Event is the inbound contract of a single fan-out: one business occurrence
// addressed at one or more recipients.
type Event struct {
	EventType         domain.EventType `json:"eventType" validate:"required"`
	ActorID           *string          `json:"actorUserId,omitempty"`
	TargetUserIDs     []string         `json:"targetUserIds" validate:"required,min=1,dive,required"`
	Title             string           `json:"title" validate:"required,max=200"`
	Content           string           `json:"content" validate:"required,max=2000"`
	RelatedObjectType *string          `json:"relatedObjectType,omitempty"`
	RelatedObjectID   *string          `json:"relatedObjectId,omitempty"`
	DedupeKey         *string          `json:"dedupeKey,omitempty"`
	SkipEmail         bool             `json:"skipEmail,omitempty"`
}

// Validate checks the event contract. Unknown event types are accepted and
// land in the SYSTEM category, so producers can ship new types ahead of this
// service.
func (e *Event) Validate(v *validator.Validate) error {
	if err := v.Struct(e); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, err)
	}
	return nil
}

// Category returns the inbox grouping for the event.
func (e *Event) Category() domain.Category {
	return domain.CategoryOf(e.EventType)
}
