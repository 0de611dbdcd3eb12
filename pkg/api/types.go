// Package api holds the HTTP request and response bodies of the fare service
// and the chi router that binds path and query parameters onto ServerInterface.
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// AccountType defines model for AccountType.
type AccountType string

// Defines values for AccountType.
const (
	Adult   AccountType = "Adult"
	Youth   AccountType = "Youth"
	Senior  AccountType = "Senior"
	PostSec AccountType = "Post-Sec"
	Child   AccountType = "Child"
)

// PaymentMethod defines model for PaymentMethod.
type PaymentMethod string

// Defines values for PaymentMethod.
const (
	PaymentMethodBalance PaymentMethod = "balance"
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodPass    PaymentMethod = "pass"
)

// Account defines model for Account.
type Account struct {
	Id          string      `json:"id"`
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	AccountType AccountType `json:"account_type"`
	Balance     int64       `json:"balance"`
	Fare        int64       `json:"fare"`
	FraudFlags  int         `json:"fraud_flags"`
	LockedUntil *time.Time  `json:"locked_until,omitempty"`
	PoolId      *string     `json:"pool_id,omitempty"`
	PoolRole    *string     `json:"pool_role,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewAccount defines model for NewAccount.
type NewAccount struct {
	Name        string              `json:"name"`
	Email       openapi_types.Email `json:"email"`
	AccountType AccountType         `json:"account_type"`
}

// PaymentCard defines model for PaymentCard.
type PaymentCard struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"`
	Cvv    string `json:"cvv"`
	Name   string `json:"name"`
}

// TopUpRequest defines model for TopUpRequest.
type TopUpRequest struct {
	AmountCents int64       `json:"amount_cents"`
	Card        PaymentCard `json:"card"`
}

// BalanceUpdate defines model for BalanceUpdate.
type BalanceUpdate struct {
	AccountId string `json:"account_id"`
	Balance   int64  `json:"balance"`
}

// Transaction defines model for Transaction.
type Transaction struct {
	Id          string    `json:"id"`
	AccountId   string    `json:"account_id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"`
	Description string    `json:"description"`
	RelatedId   *string   `json:"related_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListTransactionsParams defines parameters for ListTransactions.
type ListTransactionsParams struct {
	Limit *int32 `form:"limit,omitempty" json:"limit,omitempty"`
}

// Pass defines model for Pass.
type Pass struct {
	Id          string        `json:"id"`
	CatalogId   string        `json:"catalog_id"`
	Name        string        `json:"name"`
	AccountType AccountType   `json:"account_type"`
	PriceCents  int64         `json:"price_cents"`
	PaidVia     PaymentMethod `json:"paid_via"`
	Status      string        `json:"status"`
	ActivatedAt time.Time     `json:"activated_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// NewPass defines model for NewPass.
type NewPass struct {
	CatalogId     string        `json:"catalog_id"`
	Name          string        `json:"name"`
	PriceCents    int64         `json:"price_cents"`
	DurationDays  int           `json:"duration_days"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Card          *PaymentCard  `json:"card,omitempty"`
}

// TapRequest defines model for TapRequest.
type TapRequest struct {
	AccountId string  `json:"account_id"`
	Location  *string `json:"location,omitempty"`
}

// TapResult defines model for TapResult.
type TapResult struct {
	Accepted             bool           `json:"accepted"`
	ScanId               string         `json:"scan_id"`
	PaymentMethod        *PaymentMethod `json:"payment_method,omitempty"`
	PassName             *string        `json:"pass_name,omitempty"`
	FareCharged          int64          `json:"fare_charged"`
	NewBalance           *int64         `json:"new_balance,omitempty"`
	Reason               *string        `json:"reason,omitempty"`
	FraudFlag            bool           `json:"fraud_flag"`
	LockRemainingMinutes *int           `json:"lock_remaining_minutes,omitempty"`
}

// GuestScanRequest defines model for GuestScanRequest.
type GuestScanRequest struct {
	TokenId  string  `json:"token_id"`
	Location *string `json:"location,omitempty"`
}

// GuestScanResult defines model for GuestScanResult.
type GuestScanResult struct {
	Accepted     bool    `json:"accepted"`
	ScanId       string  `json:"scan_id"`
	FareAmount   int64   `json:"fare_amount"`
	ScanCount    int     `json:"scan_count"`
	Reason       *string `json:"reason,omitempty"`
	FraudAttempt bool    `json:"fraud_attempt"`
}

// NewGift defines model for NewGift. Exactly one recipient field must be set.
type NewGift struct {
	SenderId        string               `json:"sender_id"`
	FareCents       int64                `json:"fare_cents"`
	RecipientUserId *string              `json:"recipient_user_id,omitempty"`
	RecipientEmail  *openapi_types.Email `json:"recipient_email,omitempty"`
	RecipientPhone  *string              `json:"recipient_phone,omitempty"`
}

// GiftToken defines model for GiftToken.
type GiftToken struct {
	Id               string     `json:"id"`
	SenderId         string     `json:"sender_id"`
	RecipientKind    string     `json:"recipient_kind"`
	Recipient        string     `json:"recipient"`
	FareCents        int64      `json:"fare_cents"`
	Status           string     `json:"status"`
	ScanCount        int        `json:"scan_count"`
	CreatedAt        time.Time  `json:"created_at"`
	ExpiresAt        time.Time  `json:"expires_at"`
	FirstScannedAt   *time.Time `json:"first_scanned_at,omitempty"`
	LastScannedAt    *time.Time `json:"last_scanned_at,omitempty"`
	MinutesRemaining *int       `json:"minutes_remaining,omitempty"`
}

// PoolMember defines model for PoolMember.
type PoolMember struct {
	AccountId string `json:"account_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Balance   int64  `json:"balance"`
}

// Pool defines model for Pool.
type Pool struct {
	Id                  string       `json:"id"`
	Name                string       `json:"name"`
	HeadId              string       `json:"head_id"`
	Balance             int64        `json:"balance"`
	AutoRefillThreshold int64        `json:"auto_refill_threshold"`
	AutoRefillAmount    int64        `json:"auto_refill_amount"`
	Members             []PoolMember `json:"members"`
	CreatedAt           time.Time    `json:"created_at"`
}

// NewPool defines model for NewPool.
type NewPool struct {
	HeadId string `json:"head_id"`
	Name   string `json:"name"`
}

// AddPoolMemberRequest defines model for AddPoolMemberRequest.
type AddPoolMemberRequest struct {
	RequesterId string              `json:"requester_id"`
	Email       openapi_types.Email `json:"email"`
}

// RemovePoolMemberParams defines parameters for RemovePoolMember.
type RemovePoolMemberParams struct {
	RequesterId string `form:"requester_id" json:"requester_id"`
}

// RenamePoolRequest defines model for RenamePoolRequest.
type RenamePoolRequest struct {
	RequesterId string `json:"requester_id"`
	Name        string `json:"name"`
}

// LeavePoolRequest defines model for LeavePoolRequest.
type LeavePoolRequest struct {
	AccountId string `json:"account_id"`
}

// ContributeRequest defines model for ContributeRequest.
type ContributeRequest struct {
	MemberId    string `json:"member_id"`
	AmountCents int64  `json:"amount_cents"`
}

// AllocateRequest defines model for AllocateRequest.
type AllocateRequest struct {
	RequesterId string `json:"requester_id"`
	MemberId    string `json:"member_id"`
	AmountCents int64  `json:"amount_cents"`
}
