package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

// Store is a thread-safe in-memory implementation of storage.Storage.
// It backs local development and the engine's tests.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*models.Account
	emailIndex   map[string]string // email -> account ID
	transactions []models.Transaction
	scans        []models.ScanLogEntry
	tokens       map[string]*models.GiftToken
	passes       map[string]*models.Pass
	connections  map[string]struct{}
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts:    make(map[string]*models.Account),
		emailIndex:  make(map[string]string),
		tokens:      make(map[string]*models.GiftToken),
		passes:      make(map[string]*models.Pass),
		connections: make(map[string]struct{}),
	}
}

// Make sure we conform to the interfaces
var (
	_ storage.Storage          = (*Store)(nil)
	_ storage.WebSocketManager = (*Store)(nil)
)

func copyAccount(a *models.Account) *models.Account {
	c := *a
	if a.LockedUntil != nil {
		t := *a.LockedUntil
		c.LockedUntil = &t
	}
	return &c
}

func copyToken(t *models.GiftToken) *models.GiftToken {
	c := *t
	if t.FirstScannedAt != nil {
		v := *t.FirstScannedAt
		c.FirstScannedAt = &v
	}
	if t.LastScannedAt != nil {
		v := *t.LastScannedAt
		c.LastScannedAt = &v
	}
	return &c
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount stores a new account.
func (s *Store) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertAccountLocked(account); err != nil {
		return nil, err
	}
	return copyAccount(account), nil
}

func (s *Store) insertAccountLocked(account *models.Account) error {
	if _, exists := s.accounts[account.Id]; exists {
		return fmt.Errorf("account %s: %w", account.Id, storage.ErrAlreadyExists)
	}
	if account.Email != "" {
		if _, exists := s.emailIndex[normalizeEmail(account.Email)]; exists {
			return fmt.Errorf("email %s: %w", account.Email, storage.ErrAlreadyExists)
		}
		s.emailIndex[normalizeEmail(account.Email)] = account.Id
	}
	s.accounts[account.Id] = copyAccount(account)
	return nil
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrAccountNotFound)
	}
	return copyAccount(a), nil
}

// FindAccountByEmail retrieves a user account by e-mail address.
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emailIndex[normalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("account with email %s: %w", email, storage.ErrAccountNotFound)
	}
	return copyAccount(s.accounts[id]), nil
}

// ListPoolMembers retrieves the users linked to a pool, ordered by creation time.
func (s *Store) ListPoolMembers(ctx context.Context, poolID string) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var members []models.Account
	for _, a := range s.accounts {
		if a.Kind == models.KindUser && a.PoolId == poolID {
			members = append(members, *copyAccount(a))
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].CreatedAt.Before(members[j].CreatedAt)
	})
	return members, nil
}

// ListAccounts retrieves every account of a kind, ordered by ID.
func (s *Store) ListAccounts(ctx context.Context, kind models.AccountKind) ([]models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []models.Account
	for _, a := range s.accounts {
		if a.Kind == kind {
			accounts = append(accounts, *copyAccount(a))
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Id < accounts[j].Id })
	return accounts, nil
}

// ListTransactions retrieves the newest transactions for an account.
func (s *Store) ListTransactions(ctx context.Context, accountID string, limit int32) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].AccountId != accountID {
			continue
		}
		txs = append(txs, s.transactions[i])
		if limit > 0 && int32(len(txs)) == limit {
			break
		}
	}
	return txs, nil
}

// HasAcceptedGuestScanSince reports whether another subject had an accepted guest scan after since.
func (s *Store) HasAcceptedGuestScanSince(ctx context.Context, since time.Time, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, scan := range s.scans {
		if scan.Channel == models.ChannelGuestQR && scan.Accepted &&
			scan.SubjectId != excludeID && scan.ScannedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

// ListScans retrieves every scan log entry for a subject in insertion order.
func (s *Store) ListScans(ctx context.Context, subjectID string) ([]models.ScanLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scans []models.ScanLogEntry
	for _, scan := range s.scans {
		if scan.SubjectId == subjectID {
			scans = append(scans, scan)
		}
	}
	return scans, nil
}

// GetGiftToken retrieves a gift token by ID.
func (s *Store) GetGiftToken(ctx context.Context, id string) (*models.GiftToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[id]
	if !ok {
		return nil, fmt.Errorf("gift token %s: %w", id, storage.ErrTokenNotFound)
	}
	return copyToken(t), nil
}

// ListAbandonedTokens retrieves pending tokens whose outer expiry is before cutoff.
func (s *Store) ListAbandonedTokens(ctx context.Context, cutoff time.Time) ([]models.GiftToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tokens []models.GiftToken
	for _, t := range s.tokens {
		if t.Status == models.TokenPending && t.ExpiresAt.Before(cutoff) {
			tokens = append(tokens, *copyToken(t))
		}
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].Id < tokens[j].Id })
	return tokens, nil
}

// ListPasses retrieves a user's passes, most recently activated first.
func (s *Store) ListPasses(ctx context.Context, userID string) ([]models.Pass, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var passes []models.Pass
	for _, p := range s.passes {
		if p.UserId == userID {
			passes = append(passes, *p)
		}
	}
	sort.Slice(passes, func(i, j int) bool {
		return passes[i].ActivatedAt.After(passes[j].ActivatedAt)
	})
	return passes, nil
}

// ExpirePasses marks the user's stale active passes as expired.
func (s *Store) ExpirePasses(ctx context.Context, userID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for _, p := range s.passes {
		if p.UserId == userID && p.Stale(now) {
			p.Status = models.PassExpired
			expired++
		}
	}
	return expired, nil
}
