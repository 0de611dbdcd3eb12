package fare

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

// stagedBalance is the account balance including changes already staged in b.
func stagedBalance(b *storage.Batch, acct *models.Account) int64 {
	return acct.Balance + b.Account(acct).Delta
}

// stageDebit adds a debit and its ledger record to b. It fails with
// storage.ErrInsufficientFunds, staging nothing, when amount exceeds the balance.
func stageDebit(b *storage.Batch, acct *models.Account, amount int64, txType models.TransactionType, description, relatedID string, now time.Time) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	current := stagedBalance(b, acct)
	if amount > current {
		return current, fmt.Errorf("account %s balance %d, debit %d: %w", acct.Id, current, amount, storage.ErrInsufficientFunds)
	}
	b.Account(acct).Delta -= amount
	stageRecord(b, acct.Id, -amount, txType, description, relatedID, now)
	return current - amount, nil
}

// stageCredit adds a credit and its ledger record to b. A credit that would
// push the balance past math.MaxInt64 fails with ErrInvalidAmount.
func stageCredit(b *storage.Batch, acct *models.Account, amount int64, txType models.TransactionType, description, relatedID string, now time.Time) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	if current := stagedBalance(b, acct); amount > math.MaxInt64-current {
		return 0, fmt.Errorf("%w: account %s balance %d cannot take a credit of %d", ErrInvalidAmount, acct.Id, current, amount)
	}
	w := b.Account(acct)
	w.Delta += amount
	stageRecord(b, acct.Id, amount, txType, description, relatedID, now)
	return acct.Balance + w.Delta, nil
}

// stageTransfer debits from and credits to. The credit is only staged once the debit succeeded.
func stageTransfer(b *storage.Batch, from, to *models.Account, amount int64, txType models.TransactionType, fromDesc, toDesc, relatedID string, now time.Time) error {
	if _, err := stageDebit(b, from, amount, txType, fromDesc, relatedID, now); err != nil {
		return err
	}
	_, err := stageCredit(b, to, amount, txType, toDesc, relatedID, now)
	return err
}

func stageRecord(b *storage.Batch, accountID string, amount int64, txType models.TransactionType, description, relatedID string, now time.Time) {
	b.Transactions = append(b.Transactions, models.Transaction{
		Id:          newID(),
		AccountId:   accountID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		RelatedId:   relatedID,
		CreatedAt:   now,
	})
}

// Debit atomically removes amount from an account and records it.
// It returns the new balance, or storage.ErrInsufficientFunds leaving the account unchanged.
func (e *Engine) Debit(ctx context.Context, accountID string, amount int64, txType models.TransactionType, description, relatedID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return e.adjust(ctx, accountID, func(b *storage.Batch, acct *models.Account, now time.Time) (int64, error) {
		return stageDebit(b, acct, amount, txType, description, relatedID, now)
	})
}

// Credit atomically adds amount to an account and records it. It returns the new balance.
func (e *Engine) Credit(ctx context.Context, accountID string, amount int64, txType models.TransactionType, description, relatedID string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return e.adjust(ctx, accountID, func(b *storage.Batch, acct *models.Account, now time.Time) (int64, error) {
		return stageCredit(b, acct, amount, txType, description, relatedID, now)
	})
}

func (e *Engine) adjust(ctx context.Context, accountID string, stage func(*storage.Batch, *models.Account, time.Time) (int64, error)) (int64, error) {
	unlock := e.locks.Lock(accountKey(accountID))
	defer unlock()

	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}

	b := &storage.Batch{}
	balance, err := stage(b, acct, e.now())
	if err != nil {
		return 0, err
	}
	if err := e.commit(ctx, b); err != nil {
		return 0, err
	}
	return balance, nil
}
