package storage

import (
	"context"
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
)

// Committer applies a Batch as a single atomic unit: either every write in the
// batch becomes visible or none does.
type Committer interface {
	Commit(ctx context.Context, b *Batch) error
}

// PoolLink sets or clears a user's pool membership. An empty PoolId clears it.
type PoolLink struct {
	PoolId string
	Role   models.PoolRole
}

// AccountWrite is the set of changes applied to one existing account.
// Every write bumps the account version and is conditional on ExpectVersion.
// A negative Delta is additionally conditional on balance >= -Delta.
type AccountWrite struct {
	AccountId     string
	ExpectVersion int64
	Delta         int64
	LockedUntil   *time.Time
	FraudFlagsInc int
	Pool          *PoolLink
	Name          *string
	Delete        bool
}

// TokenWrite creates or replaces a gift token. Replacements are conditional
// on the stored token still having ExpectStatus and ExpectScanCount.
type TokenWrite struct {
	Token           models.GiftToken
	Create          bool
	ExpectStatus    models.TokenStatus
	ExpectScanCount int
}

// Batch is a unit of work collected by the fare engine and applied by Commit.
type Batch struct {
	NewAccounts  []models.Account
	Accounts     []*AccountWrite
	Transactions []models.Transaction
	Scans        []models.ScanLogEntry
	Tokens       []TokenWrite
	Passes       []models.Pass
}

// Account returns the pending write for an account, adding one conditioned on
// the account's current version if none exists yet.
func (b *Batch) Account(a *models.Account) *AccountWrite {
	for _, w := range b.Accounts {
		if w.AccountId == a.Id {
			return w
		}
	}
	w := &AccountWrite{AccountId: a.Id, ExpectVersion: a.Version}
	b.Accounts = append(b.Accounts, w)
	return w
}

// Empty reports whether the batch has nothing to write.
func (b *Batch) Empty() bool {
	return len(b.NewAccounts) == 0 && len(b.Accounts) == 0 && len(b.Transactions) == 0 &&
		len(b.Scans) == 0 && len(b.Tokens) == 0 && len(b.Passes) == 0
}
