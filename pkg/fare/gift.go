package fare

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

const (
	reasonRedeemed = "token already redeemed"
	reasonExpired  = "guest pass expired"
)

// GuestScanResult is the outcome of a guest QR scan.
type GuestScanResult struct {
	Accepted     bool
	FareAmount   int64
	Reason       string
	FraudAttempt bool
	ScanCount    int
	ScanId       string
}

// TokenSnapshot is a gift token with its derived usage window.
// ExpiresAt is the end of the guest window once scanned, the outer expiry before.
// MinutesRemaining is nil until the first scan.
type TokenSnapshot struct {
	Token            models.GiftToken
	ExpiresAt        time.Time
	MinutesRemaining *int
}

func validateRecipient(senderID string, r models.Recipient) error {
	switch rec := r.(type) {
	case models.UserRecipient:
		if strings.TrimSpace(rec.AccountId) == "" {
			return ErrInvalidRecipient
		}
		if rec.AccountId == senderID {
			return ErrSelfGift
		}
	case models.GuestEmail:
		if strings.TrimSpace(rec.Address) == "" {
			return ErrInvalidRecipient
		}
	case models.GuestPhone:
		if strings.TrimSpace(rec.Number) == "" {
			return ErrInvalidRecipient
		}
	default:
		return ErrInvalidRecipient
	}
	return nil
}

// CreateGift debits fareCents from the sender and issues a gift token.
// A known-account recipient is credited in the same commit and the token is
// born used. Guest tokens start pending and are redeemed by QR scan.
func (e *Engine) CreateGift(ctx context.Context, senderID string, recipient models.Recipient, fareCents int64) (*models.GiftToken, error) {
	if fareCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := validateRecipient(senderID, recipient); err != nil {
		return nil, err
	}

	keys := []string{accountKey(senderID)}
	user, toUser := recipient.(models.UserRecipient)
	if toUser {
		keys = append(keys, accountKey(user.AccountId))
	}
	unlock := e.locks.Lock(keys...)
	defer unlock()

	sender, err := e.store.GetAccount(ctx, senderID)
	if errors.Is(err, storage.ErrAccountNotFound) {
		return nil, ErrSenderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sender: %w", err)
	}
	if sender.IsPool() {
		return nil, ErrNotRiderAccount
	}

	var receiver *models.Account
	if toUser {
		receiver, err = e.store.GetAccount(ctx, user.AccountId)
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, ErrRecipientNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get recipient: %w", err)
		}
		if receiver.IsPool() {
			return nil, ErrRecipientNotFound
		}
	}

	now := e.now()
	token := models.GiftToken{
		Id:        newGiftTokenID(),
		SenderId:  sender.Id,
		Recipient: recipient,
		FareCents: fareCents,
		Status:    models.TokenPending,
		CreatedAt: now,
		ExpiresAt: now.Add(e.policy.GiftOuterExpiry),
	}

	b := &storage.Batch{}
	if receiver == nil {
		desc := fmt.Sprintf("Guest pass sent to %s", recipient.Label())
		if _, err := stageDebit(b, sender, fareCents, models.TxGiftSent, desc, token.Id, now); err != nil {
			return nil, err
		}
	} else {
		desc := fmt.Sprintf("Fare gifted to %s", receiver.Name)
		if _, err := stageDebit(b, sender, fareCents, models.TxGiftSent, desc, token.Id, now); err != nil {
			return nil, err
		}
		desc = fmt.Sprintf("Fare received from %s", sender.Name)
		if _, err := stageCredit(b, receiver, fareCents, models.TxGiftReceived, desc, token.Id, now); err != nil {
			return nil, err
		}
		token.Status = models.TokenUsed
		token.ScanCount = 1
	}
	b.Tokens = append(b.Tokens, storage.TokenWrite{Token: token, Create: true})

	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}
	e.logger.Info("gift created",
		"token_id", token.Id,
		"sender_id", sender.Id,
		"recipient_kind", recipient.Kind(),
		"fare", fareCents,
		"status", token.Status,
	)
	return &token, nil
}

// windowEnd is when an activated guest token stops being valid.
func (e *Engine) windowEnd(tok *models.GiftToken) time.Time {
	return tok.FirstScannedAt.Add(e.policy.GuestWindow)
}

// stale reports whether the token should now be expired: a pending token
// past its outer expiry, or an active one past its guest window.
func (e *Engine) stale(tok *models.GiftToken, now time.Time) bool {
	switch tok.Status {
	case models.TokenPending:
		return now.After(tok.ExpiresAt)
	case models.TokenActive:
		return tok.FirstScannedAt != nil && now.After(e.windowEnd(tok))
	default:
		return false
	}
}

func stageTokenUpdate(b *storage.Batch, prev *models.GiftToken, next models.GiftToken) {
	b.Tokens = append(b.Tokens, storage.TokenWrite{
		Token:           next,
		ExpectStatus:    prev.Status,
		ExpectScanCount: prev.ScanCount,
	})
}

func expired(tok *models.GiftToken) models.GiftToken {
	next := *tok
	next.Status = models.TokenExpired
	return next
}

// ScanGuestToken evaluates a QR scan of a guest gift token at location.
// The fare was paid at creation, so accepted scans move no money.
func (e *Engine) ScanGuestToken(ctx context.Context, tokenID, location string) (*GuestScanResult, error) {
	if strings.TrimSpace(location) == "" {
		location = defaultLocation
	}

	unlock := e.locks.Lock(tokenKey(tokenID))
	defer unlock()

	tok, err := e.store.GetGiftToken(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to get gift token: %w", err)
	}

	now := e.now()
	scan := models.ScanLogEntry{
		Id:        newID(),
		SubjectId: tok.Id,
		Channel:   models.ChannelGuestQR,
		Location:  location,
		FareCents: tok.FareCents,
		ScannedAt: now,
	}
	b := &storage.Batch{}
	res := &GuestScanResult{ScanCount: tok.ScanCount}

	if !models.IsGuest(tok.Recipient) || tok.Status.Terminal() {
		res.Reason = reasonRedeemed
		if tok.Status == models.TokenExpired {
			res.Reason = reasonExpired
		}
		return e.rejectGuestScan(ctx, b, scan, res)
	}
	if e.stale(tok, now) {
		stageTokenUpdate(b, tok, expired(tok))
		res.Reason = reasonExpired
		return e.rejectGuestScan(ctx, b, scan, res)
	}

	if tok.LastScannedAt != nil {
		if unlockAt := tok.LastScannedAt.Add(e.policy.RescanLock); now.Before(unlockAt) {
			res.Reason = fmt.Sprintf("rescan locked for %dm", ceilMinutes(unlockAt.Sub(now)))
			res.FraudAttempt = true
			scan.FraudFlag = true
			return e.rejectGuestScan(ctx, b, scan, res)
		}
	}

	next := *tok
	scannedAt := now
	if next.FirstScannedAt == nil {
		next.FirstScannedAt = &scannedAt
		next.Status = models.TokenActive
	}
	next.LastScannedAt = &scannedAt
	next.ScanCount++
	stageTokenUpdate(b, tok, next)

	scan.Accepted = true
	b.Scans = append(b.Scans, scan)
	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}

	e.logger.Info("guest scan accepted", "token_id", tok.Id, "location", location, "scan_count", next.ScanCount)
	return &GuestScanResult{
		Accepted:   true,
		FareAmount: tok.FareCents,
		ScanCount:  next.ScanCount,
		ScanId:     scan.Id,
	}, nil
}

func (e *Engine) rejectGuestScan(ctx context.Context, b *storage.Batch, scan models.ScanLogEntry, res *GuestScanResult) (*GuestScanResult, error) {
	scan.RejectReason = res.Reason
	b.Scans = append(b.Scans, scan)
	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}
	res.ScanId = scan.Id
	if res.FraudAttempt {
		e.logger.Warn("guest token rescan attempt", "token_id", scan.SubjectId, "location", scan.Location, "reason", res.Reason)
	} else {
		e.logger.Info("guest scan rejected", "token_id", scan.SubjectId, "location", scan.Location, "reason", res.Reason)
	}
	return res, nil
}

// GetToken returns a token snapshot, first expiring the token if it is stale.
func (e *Engine) GetToken(ctx context.Context, tokenID string) (*TokenSnapshot, error) {
	unlock := e.locks.Lock(tokenKey(tokenID))
	defer unlock()

	tok, err := e.store.GetGiftToken(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to get gift token: %w", err)
	}

	now := e.now()
	if e.stale(tok, now) {
		next := expired(tok)
		b := &storage.Batch{}
		stageTokenUpdate(b, tok, next)
		if err := e.commit(ctx, b); err != nil {
			return nil, err
		}
		tok = &next
	}

	snap := &TokenSnapshot{Token: *tok, ExpiresAt: tok.ExpiresAt}
	if tok.FirstScannedAt != nil {
		snap.ExpiresAt = e.windowEnd(tok)
		minutes := ceilMinutes(snap.ExpiresAt.Sub(now))
		snap.MinutesRemaining = &minutes
	}
	return snap, nil
}

// ExpireAbandonedTokens expires pending guest tokens whose outer expiry has
// passed. The sender is not refunded. It returns how many tokens changed.
func (e *Engine) ExpireAbandonedTokens(ctx context.Context) (int, error) {
	now := e.now()
	tokens, err := e.store.ListAbandonedTokens(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list abandoned tokens: %w", err)
	}

	count := 0
	for _, t := range tokens {
		changed, err := e.expireAbandoned(ctx, t.Id, now)
		if err != nil {
			return count, err
		}
		if changed {
			count++
		}
	}
	if count > 0 {
		e.logger.Info("abandoned gift tokens expired", "count", count)
	}
	return count, nil
}

func (e *Engine) expireAbandoned(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	unlock := e.locks.Lock(tokenKey(tokenID))
	defer unlock()

	tok, err := e.store.GetGiftToken(ctx, tokenID)
	if err != nil {
		return false, fmt.Errorf("failed to get gift token: %w", err)
	}
	if tok.Status != models.TokenPending || !now.After(tok.ExpiresAt) {
		return false, nil
	}
	b := &storage.Batch{}
	stageTokenUpdate(b, tok, expired(tok))
	if err := e.commit(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}
