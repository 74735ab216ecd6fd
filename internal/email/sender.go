package email

import (
	"context"
	"errors"
)

// Sender errors.
var ErrNoAddress = errors.New("recipient has no email address")

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender is the outbound mail transport contract.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// AddressResolver resolves a user ID to their email address via the user
// directory collaborator.
type AddressResolver interface {
	EmailAddress(ctx context.Context, userID string) (string, error)
}
