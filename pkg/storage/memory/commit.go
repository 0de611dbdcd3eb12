package memory

import (
	"context"
	"fmt"

	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

// Commit validates every condition in the batch and only then applies the writes,
// so a failed condition leaves the store untouched.
func (s *Store) Commit(ctx context.Context, b *storage.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validateLocked(b); err != nil {
		return err
	}

	for i := range b.NewAccounts {
		if err := s.insertAccountLocked(&b.NewAccounts[i]); err != nil {
			return err
		}
	}
	for _, w := range b.Accounts {
		s.applyAccountWriteLocked(w)
	}
	s.transactions = append(s.transactions, b.Transactions...)
	s.scans = append(s.scans, b.Scans...)
	for _, tw := range b.Tokens {
		token := tw.Token
		s.tokens[token.Id] = copyToken(&token)
	}
	for _, p := range b.Passes {
		pass := p
		s.passes[pass.Id] = &pass
	}
	return nil
}

func (s *Store) validateLocked(b *storage.Batch) error {
	for _, a := range b.NewAccounts {
		if _, exists := s.accounts[a.Id]; exists {
			return fmt.Errorf("account %s: %w", a.Id, storage.ErrAlreadyExists)
		}
		if a.Email != "" {
			if _, exists := s.emailIndex[normalizeEmail(a.Email)]; exists {
				return fmt.Errorf("email %s: %w", a.Email, storage.ErrAlreadyExists)
			}
		}
	}
	for _, w := range b.Accounts {
		a, ok := s.accounts[w.AccountId]
		if !ok {
			return fmt.Errorf("account %s: %w", w.AccountId, storage.ErrAccountNotFound)
		}
		if a.Version != w.ExpectVersion {
			return fmt.Errorf("account %s version %d, expected %d: %w", a.Id, a.Version, w.ExpectVersion, storage.ErrConflict)
		}
		if a.Balance+w.Delta < 0 {
			return fmt.Errorf("account %s: %w", a.Id, storage.ErrInsufficientFunds)
		}
	}
	for _, tw := range b.Tokens {
		existing, ok := s.tokens[tw.Token.Id]
		if tw.Create {
			if ok {
				return fmt.Errorf("gift token %s: %w", tw.Token.Id, storage.ErrAlreadyExists)
			}
			continue
		}
		if !ok {
			return fmt.Errorf("gift token %s: %w", tw.Token.Id, storage.ErrTokenNotFound)
		}
		if existing.Status != tw.ExpectStatus || existing.ScanCount != tw.ExpectScanCount {
			return fmt.Errorf("gift token %s: %w", tw.Token.Id, storage.ErrConflict)
		}
	}
	for _, p := range b.Passes {
		if _, exists := s.passes[p.Id]; exists {
			return fmt.Errorf("pass %s: %w", p.Id, storage.ErrAlreadyExists)
		}
	}
	return nil
}

func (s *Store) applyAccountWriteLocked(w *storage.AccountWrite) {
	a := s.accounts[w.AccountId]
	if w.Delete {
		if a.Email != "" {
			delete(s.emailIndex, normalizeEmail(a.Email))
		}
		delete(s.accounts, w.AccountId)
		return
	}
	a.Balance += w.Delta
	a.FraudFlags += w.FraudFlagsInc
	if w.LockedUntil != nil {
		t := *w.LockedUntil
		a.LockedUntil = &t
	}
	if w.Pool != nil {
		a.PoolId = w.Pool.PoolId
		a.PoolRole = w.Pool.Role
		if w.Pool.PoolId == "" {
			a.PoolRole = models.PoolRole("")
		}
	}
	if w.Name != nil {
		a.Name = *w.Name
	}
	a.Version++
}
