// Package email delivers console mail such as login links.
package email

import (
	"context"
	"errors"
	"time"
)

var ErrNoRecipient = errors.New("message has no recipient")

// Message is one outgoing mail.
type Message struct {
	To       []string // Recipient addresses
	From     string   // Overrides the sender's default address when set
	Subject  string
	HTML     string
	Text     string // Plain-text alternative
	Category string // Provider tag, e.g. "login_link"
	// IdempotencyKey deduplicates retries of the same send at the provider.
	IdempotencyKey string
}

// SendResult contains the response from the email provider.
type SendResult struct {
	MessageID string    // Provider's message ID for tracking
	SentAt    time.Time // When the send was accepted
}

// Sender sends mail through an external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}
