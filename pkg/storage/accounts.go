package storage

import (
	"context"

	"github.com/chris/transit-fare-engine/pkg/models"
)

// AccountReader defines the interface for reading user and pool accounts.
type AccountReader interface {
	// GetAccount retrieves an account by its ID.
	GetAccount(ctx context.Context, id string) (*models.Account, error)

	// FindAccountByEmail retrieves a user account by e-mail address.
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)

	// ListPoolMembers retrieves the user accounts linked to a pool.
	ListPoolMembers(ctx context.Context, poolID string) ([]models.Account, error)

	// ListAccounts retrieves every account of the given kind.
	ListAccounts(ctx context.Context, kind models.AccountKind) ([]models.Account, error)
}

// AccountStore combines account reads with account creation.
// Balance and state changes go through Committer so they stay paired with ledger records.
type AccountStore interface {
	AccountReader

	// CreateAccount creates a new account with a zero balance.
	CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error)
}
