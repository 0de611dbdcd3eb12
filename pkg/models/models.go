package models

import (
	"time"
)

// AccountKind distinguishes rider accounts from shared pool balances.
type AccountKind string

const (
	KindUser AccountKind = "user"
	KindPool AccountKind = "pool"
)

// AccountType is the rider category that determines the e-cash fare.
type AccountType string

const (
	Adult   AccountType = "Adult"
	Youth   AccountType = "Youth"
	Senior  AccountType = "Senior"
	PostSec AccountType = "Post-Sec"
	Child   AccountType = "Child"
)

var fareByType = map[AccountType]int64{
	Adult:   310,
	Youth:   230,
	Senior:  155,
	PostSec: 310,
	Child:   0,
}

// Fare returns the per-ride fare in cents. Unknown types pay the adult fare.
func (t AccountType) Fare() int64 {
	if fare, ok := fareByType[t]; ok {
		return fare
	}
	return fareByType[Adult]
}

// Valid reports whether t is one of the known rider categories.
func (t AccountType) Valid() bool {
	_, ok := fareByType[t]
	return ok
}

// PoolRole is a user's role inside a pool.
type PoolRole string

const (
	PoolHead   PoolRole = "head"
	PoolMember PoolRole = "member"
)

// Account is a balance holder: either a rider (user) or a shared pool.
// Balance is in cents and never negative.
type Account struct {
	Id          string      `json:"id" dynamodbav:"id"`
	Kind        AccountKind `json:"kind" dynamodbav:"kind"`
	Name        string      `json:"name" dynamodbav:"name"`
	Email       string      `json:"email,omitempty" dynamodbav:"email,omitempty"`
	AccountType AccountType `json:"account_type,omitempty" dynamodbav:"account_type,omitempty"`
	Balance     int64       `json:"balance" dynamodbav:"balance"`
	LockedUntil *time.Time  `json:"locked_until,omitempty" dynamodbav:"locked_until,omitempty"`
	FraudFlags  int         `json:"fraud_flags" dynamodbav:"fraud_flags"`
	PoolId      string      `json:"pool_id,omitempty" dynamodbav:"pool_id,omitempty"`
	PoolRole    PoolRole    `json:"pool_role,omitempty" dynamodbav:"pool_role,omitempty"`

	// Pool-only fields.
	HeadId string `json:"head_id,omitempty" dynamodbav:"head_id,omitempty"`
	// Auto-refill settings are persisted for pools but no operation acts on them.
	AutoRefillThreshold int64 `json:"auto_refill_threshold,omitempty" dynamodbav:"auto_refill_threshold,omitempty"`
	AutoRefillAmount    int64 `json:"auto_refill_amount,omitempty" dynamodbav:"auto_refill_amount,omitempty"`

	Version   int64     `json:"version" dynamodbav:"version"`
	CreatedAt time.Time `json:"created_at" dynamodbav:"created_at"`
}

// IsPool reports whether the account is a shared pool balance.
func (a *Account) IsPool() bool {
	return a.Kind == KindPool
}

// TransactionType tags a ledger record.
type TransactionType string

const (
	TxRide         TransactionType = "ride"
	TxTopUp        TransactionType = "topup"
	TxGiftSent     TransactionType = "gift_sent"
	TxGiftReceived TransactionType = "gift_received"
	TxPassPurchase TransactionType = "pass_purchase"
	TxPoolTransfer TransactionType = "pool_transfer"
)

// Transaction is an immutable ledger record for exactly one account.
// Amount is signed: positive is a credit, negative a debit.
type Transaction struct {
	Id          string          `json:"id" dynamodbav:"id"`
	AccountId   string          `json:"account_id" dynamodbav:"account_id"`
	Type        TransactionType `json:"type" dynamodbav:"type"`
	Amount      int64           `json:"amount" dynamodbav:"amount"`
	Description string          `json:"description" dynamodbav:"description"`
	RelatedId   string          `json:"related_id,omitempty" dynamodbav:"related_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at" dynamodbav:"created_at"`
}

// ScanChannel is the medium a boarding attempt came through.
type ScanChannel string

const (
	ChannelNFC     ScanChannel = "nfc"
	ChannelGuestQR ScanChannel = "qr_guest"
)

// ScanLogEntry is an append-only record of one boarding attempt.
// SubjectId is an account id for NFC taps and a token id for guest scans.
type ScanLogEntry struct {
	Id           string      `json:"id" dynamodbav:"id"`
	SubjectId    string      `json:"subject_id" dynamodbav:"subject_id"`
	Channel      ScanChannel `json:"channel" dynamodbav:"channel"`
	Location     string      `json:"location" dynamodbav:"location"`
	FareCents    int64       `json:"fare_cents" dynamodbav:"fare_cents"`
	Accepted     bool        `json:"accepted" dynamodbav:"accepted"`
	RejectReason string      `json:"reject_reason,omitempty" dynamodbav:"reject_reason,omitempty"`
	FraudFlag    bool        `json:"fraud_flag" dynamodbav:"fraud_flag"`
	ScannedAt    time.Time   `json:"scanned_at" dynamodbav:"scanned_at"`
}

// PassStatus is the lifecycle state of an unlimited-ride pass.
type PassStatus string

const (
	PassActive  PassStatus = "active"
	PassExpired PassStatus = "expired"
)

// PaymentMethod records how a pass or ride was paid for.
type PaymentMethod string

const (
	PayBalance PaymentMethod = "balance"
	PayCard    PaymentMethod = "card"
	PayPass    PaymentMethod = "pass"
)

// Pass is a time-boxed unlimited-ride entitlement owned by one user.
type Pass struct {
	Id          string        `json:"id" dynamodbav:"id"`
	UserId      string        `json:"user_id" dynamodbav:"user_id"`
	CatalogId   string        `json:"catalog_id" dynamodbav:"catalog_id"`
	Name        string        `json:"name" dynamodbav:"name"`
	AccountType AccountType   `json:"account_type" dynamodbav:"account_type"`
	PriceCents  int64         `json:"price_cents" dynamodbav:"price_cents"`
	PaidVia     PaymentMethod `json:"paid_via" dynamodbav:"paid_via"`
	ActivatedAt time.Time     `json:"activated_at" dynamodbav:"activated_at"`
	ExpiresAt   time.Time     `json:"expires_at" dynamodbav:"expires_at"`
	Status      PassStatus    `json:"status" dynamodbav:"status"`
}

// Stale reports whether an active pass has outlived its expiry at now.
func (p *Pass) Stale(now time.Time) bool {
	return p.Status == PassActive && p.ExpiresAt.Before(now)
}
