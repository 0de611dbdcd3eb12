// Package fare is the transaction and token processing engine: it moves money
// between balances, enforces anti-passback on card taps, runs the guest token
// lifecycle and flags suspicious scans. Every balance change it makes is
// committed together with its ledger record.
package fare

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/chris/transit-fare-engine/pkg/config"
	"github.com/chris/transit-fare-engine/pkg/storage"
	"github.com/google/uuid"
)

const defaultLocation = "Unknown Route"

// Engine evaluates taps, gifts, passes and pool transfers against a Storage.
// Read-then-write sequences on the same account or token are serialized;
// unrelated identifiers proceed concurrently.
type Engine struct {
	store  storage.Storage
	policy config.Policy
	locks  *keyLocks
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the structured logger used for decisions and anomalies.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an Engine backed by store and governed by policy.
func NewEngine(store storage.Storage, policy config.Policy, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		policy: policy,
		locks:  newKeyLocks(),
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the rules the engine was configured with.
func (e *Engine) Policy() config.Policy {
	return e.policy
}

func (e *Engine) commit(ctx context.Context, b *storage.Batch) error {
	if b.Empty() {
		return nil
	}
	if err := e.store.Commit(ctx, b); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func accountKey(id string) string { return "account:" + id }
func tokenKey(id string) string   { return "token:" + id }

func newID() string {
	return uuid.NewString()
}

func newGiftTokenID() string {
	return "GT-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

// ceilMinutes rounds a positive duration up to whole minutes.
func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}
