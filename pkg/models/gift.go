package models

import "time"

// TokenStatus is the lifecycle state of a gift token.
type TokenStatus string

const (
	TokenPending TokenStatus = "pending"
	TokenActive  TokenStatus = "active"
	TokenUsed    TokenStatus = "used"
	TokenExpired TokenStatus = "expired"
)

// Terminal reports whether no further scans can succeed.
func (s TokenStatus) Terminal() bool {
	return s == TokenUsed || s == TokenExpired
}

// RecipientKind names the variant held by a Recipient.
type RecipientKind string

const (
	RecipientUser       RecipientKind = "user"
	RecipientGuestEmail RecipientKind = "guest_email"
	RecipientGuestPhone RecipientKind = "guest_phone"
)

// Recipient is who a gift is addressed to. It is one of UserRecipient,
// GuestEmail or GuestPhone.
type Recipient interface {
	Kind() RecipientKind
	// Label is a human readable form used in ledger descriptions.
	Label() string
}

// UserRecipient is a registered account that is credited at gift creation.
type UserRecipient struct {
	AccountId string
}

func (UserRecipient) Kind() RecipientKind { return RecipientUser }
func (r UserRecipient) Label() string     { return r.AccountId }

// GuestEmail is an unregistered guest reached by e-mail.
type GuestEmail struct {
	Address string
}

func (GuestEmail) Kind() RecipientKind { return RecipientGuestEmail }
func (r GuestEmail) Label() string     { return r.Address }

// GuestPhone is an unregistered guest reached by phone.
type GuestPhone struct {
	Number string
}

func (GuestPhone) Kind() RecipientKind { return RecipientGuestPhone }
func (r GuestPhone) Label() string     { return r.Number }

// IsGuest reports whether the recipient redeems by QR scan.
func IsGuest(r Recipient) bool {
	switch r.(type) {
	case GuestEmail, GuestPhone:
		return true
	default:
		return false
	}
}

// GiftToken is a promised fare transfer. ExpiresAt is the outer storage
// backstop; the usage window starts at FirstScannedAt.
type GiftToken struct {
	Id             string
	SenderId       string
	Recipient      Recipient
	FareCents      int64
	Status         TokenStatus
	CreatedAt      time.Time
	ExpiresAt      time.Time
	FirstScannedAt *time.Time
	LastScannedAt  *time.Time
	ScanCount      int
}
