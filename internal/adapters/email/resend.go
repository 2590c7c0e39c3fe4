package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender sends mail via the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender with the given API key and default from address.
// PRE: apiKey is a valid Resend API key; from is a valid sender address
// POST: Returns a ready-to-use sender
func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey), from: from}
}

// WithBaseURL points the sender at another API endpoint.
func (s *ResendSender) WithBaseURL(raw string) (*ResendSender, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse resend base url: %w", err)
	}
	s.client.BaseURL = u
	return s, nil
}

// Send submits one message.
// PRE: msg has at least one recipient
// POST: Message is queued for delivery; returns the Resend message ID
func (s *ResendSender) Send(ctx context.Context, msg Message) (SendResult, error) {
	if len(msg.To) == 0 {
		return SendResult{}, ErrNoRecipient
	}
	from := msg.From
	if from == "" {
		from = s.from
	}

	params := &resend.SendEmailRequest{
		From:    from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if msg.Category != "" {
		params.Tags = []resend.Tag{{Name: "category", Value: msg.Category}}
	}
	// An empty key sends no Idempotency-Key header.
	opts := &resend.SendEmailOptions{IdempotencyKey: msg.IdempotencyKey}

	sent, err := s.client.Emails.SendWithOptions(ctx, params, opts)
	if err != nil {
		slog.Error("resend_send_failed", "error", err, "to", msg.To, "category", msg.Category)
		return SendResult{}, fmt.Errorf("resend send failed: %w", err)
	}

	slog.Info("resend_sent", "message_id", sent.Id, "to", msg.To, "category", msg.Category)
	return SendResult{MessageID: sent.Id, SentAt: time.Now()}, nil
}
