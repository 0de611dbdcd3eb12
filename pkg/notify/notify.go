// Package notify hands gift tokens to the external delivery service that
// e-mails or texts guests their QR code.
package notify

import (
	"context"
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
)

// MessageTypeGiftIssued tags a notification for a newly issued guest token.
const MessageTypeGiftIssued = "gift_issued"

// Notifier defines the interface for a component that announces issued gift tokens.
type Notifier interface {
	// GiftIssued enqueues delivery of a guest token to its recipient.
	GiftIssued(ctx context.Context, token *models.GiftToken) error
}

// GiftIssuedMessage is the body the delivery service receives.
type GiftIssuedMessage struct {
	Type          string    `json:"type"`
	TokenId       string    `json:"token_id"`
	SenderId      string    `json:"sender_id"`
	RecipientKind string    `json:"recipient_kind"`
	Recipient     string    `json:"recipient"`
	FareCents     int64     `json:"fare_cents"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// NewGiftIssuedMessage describes token for the delivery service.
func NewGiftIssuedMessage(token *models.GiftToken) GiftIssuedMessage {
	return GiftIssuedMessage{
		Type:          MessageTypeGiftIssued,
		TokenId:       token.Id,
		SenderId:      token.SenderId,
		RecipientKind: string(token.Recipient.Kind()),
		Recipient:     token.Recipient.Label(),
		FareCents:     token.FareCents,
		ExpiresAt:     token.ExpiresAt,
	}
}

// NoOpNotifier drops every notification.
type NoOpNotifier struct{}

// GiftIssued does nothing.
func (NoOpNotifier) GiftIssued(ctx context.Context, token *models.GiftToken) error {
	return nil
}
