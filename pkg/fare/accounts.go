package fare

import (
	"context"
	"fmt"
	"strings"

	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

const defaultTransactionLimit = 30

func shortID(prefix string) string {
	return prefix + strings.ReplaceAll(newID(), "-", "")[:8]
}

// CreateAccount registers a rider with a zero balance.
func (e *Engine) CreateAccount(ctx context.Context, name, email string, accountType models.AccountType) (*models.Account, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || !accountType.Valid() {
		return nil, ErrInvalidAccount
	}

	acct := &models.Account{
		Id:          shortID("usr_"),
		Kind:        models.KindUser,
		Name:        name,
		Email:       email,
		AccountType: accountType,
		Version:     1,
		CreatedAt:   e.now(),
	}
	created, err := e.store.CreateAccount(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	e.logger.Info("account created", "account_id", created.Id, "account_type", created.AccountType)
	return created, nil
}

// GetAccount returns an account by id.
func (e *Engine) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

// ListTransactions returns the newest ledger records of an account.
// A non-positive limit uses the default page size.
func (e *Engine) ListTransactions(ctx context.Context, accountID string, limit int32) ([]models.Transaction, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	txs, err := e.store.ListTransactions(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// TopUp credits a rider's balance from a demo card charge.
func (e *Engine) TopUp(ctx context.Context, accountID string, amountCents int64, card Card) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrInvalidAmount
	}
	if amountCents < e.policy.MinTopUpCents {
		return 0, fmt.Errorf("%w: minimum is %d cents", ErrTopUpTooSmall, e.policy.MinTopUpCents)
	}
	if amountCents > e.policy.MaxTopUpCents {
		return 0, fmt.Errorf("%w: maximum is %d cents", ErrTopUpTooLarge, e.policy.MaxTopUpCents)
	}
	if err := card.Validate(e.now()); err != nil {
		return 0, err
	}

	unlock := e.locks.Lock(accountKey(accountID))
	defer unlock()

	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	if acct.IsPool() {
		return 0, ErrNotRiderAccount
	}

	now := e.now()
	b := &storage.Batch{}
	balance, err := stageCredit(b, acct, amountCents, models.TxTopUp,
		fmt.Sprintf("Top-Up via card ending %s", card.Last4()), "", now)
	if err != nil {
		return 0, err
	}
	if err := e.commit(ctx, b); err != nil {
		return 0, err
	}
	e.logger.Info("balance topped up", "account_id", acct.Id, "amount", amountCents, "balance", balance)
	return balance, nil
}
