package storage

import (
	"context"
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
)

// TransactionReader defines the interface for reading the append-only ledger.
type TransactionReader interface {
	// ListTransactions retrieves the most recent transactions for an account, newest first.
	ListTransactions(ctx context.Context, accountID string, limit int32) ([]models.Transaction, error)
}

// ScanLogReader defines the interface for reading the append-only scan log.
type ScanLogReader interface {
	// HasAcceptedGuestScanSince reports whether any subject other than excludeID
	// produced an accepted guest QR scan after since.
	HasAcceptedGuestScanSince(ctx context.Context, since time.Time, excludeID string) (bool, error)

	// ListScans retrieves the scan log entries for one account or token, oldest first.
	ListScans(ctx context.Context, subjectID string) ([]models.ScanLogEntry, error)
}

// GiftTokenStore defines the interface for reading gift tokens.
// Token writes are part of a Batch.
type GiftTokenStore interface {
	// GetGiftToken retrieves a gift token by its ID.
	GetGiftToken(ctx context.Context, id string) (*models.GiftToken, error)

	// ListAbandonedTokens retrieves pending tokens whose outer expiry is before cutoff.
	ListAbandonedTokens(ctx context.Context, cutoff time.Time) ([]models.GiftToken, error)
}

// PassStore defines the interface for reading and expiring passes.
type PassStore interface {
	// ListPasses retrieves every pass owned by a user, most recently activated first.
	ListPasses(ctx context.Context, userID string) ([]models.Pass, error)

	// ExpirePasses moves the user's active passes whose expiry is before now to expired.
	// It returns how many passes changed and is a no-op on an already expired set.
	ExpirePasses(ctx context.Context, userID string, now time.Time) (int, error)
}
