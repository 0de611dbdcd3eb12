// Package faretest builds engines on the in-memory store for tests of
// packages that sit on top of the fare engine.
package faretest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chris/transit-fare-engine/pkg/config"
	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage/memory"
	"github.com/stretchr/testify/require"
)

// Start is the clock reading of a fresh test engine.
var Start = time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// NewEngine returns an engine with the default policy on an empty memory store.
func NewEngine(t *testing.T) (*fare.Engine, *memory.Store, *Clock) {
	t.Helper()
	store := memory.New()
	clock := &Clock{now: Start}
	return fare.NewEngine(store, config.DefaultPolicy(), fare.WithClock(clock.Now)), store, clock
}

// SeedUser stores a rider with the given balance. Its name is id and its
// e-mail id@example.com.
func SeedUser(t *testing.T, store *memory.Store, id string, accountType models.AccountType, balance int64) *models.Account {
	t.Helper()
	acct, err := store.CreateAccount(context.Background(), &models.Account{
		Id:          id,
		Kind:        models.KindUser,
		Name:        id,
		Email:       id + "@example.com",
		AccountType: accountType,
		Balance:     balance,
		Version:     1,
		CreatedAt:   Start,
	})
	require.NoError(t, err)
	return acct
}

// Balance reads an account balance straight from the store.
func Balance(t *testing.T, store *memory.Store, id string) int64 {
	t.Helper()
	acct, err := store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acct.Balance
}
