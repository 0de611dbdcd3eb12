package fare

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

// PassSpec describes a catalog pass being bought. Pricing lives outside the engine.
type PassSpec struct {
	CatalogId  string
	Name       string
	PriceCents int64
	Duration   time.Duration
}

// Payment says how a purchase is funded. Card is required for PayCard.
type Payment struct {
	Method models.PaymentMethod
	Card   *Card
}

// ExpireStalePasses moves the user's passes that are past expiry to expired.
// Calling it again is a no-op.
func (e *Engine) ExpireStalePasses(ctx context.Context, userID string) (int, error) {
	unlock := e.locks.Lock(accountKey(userID))
	defer unlock()
	return e.expireStalePasses(ctx, userID, e.now())
}

func (e *Engine) expireStalePasses(ctx context.Context, userID string, now time.Time) (int, error) {
	n, err := e.store.ExpirePasses(ctx, userID, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire passes: %w", err)
	}
	if n > 0 {
		e.logger.Info("passes expired", "account_id", userID, "count", n)
	}
	return n, nil
}

// ListPasses returns the user's passes with stale ones already expired.
func (e *Engine) ListPasses(ctx context.Context, userID string) ([]models.Pass, error) {
	if _, err := e.ExpireStalePasses(ctx, userID); err != nil {
		return nil, err
	}
	passes, err := e.store.ListPasses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list passes: %w", err)
	}
	return passes, nil
}

// activePass picks the active pass that expires soonest. Ties go to the lowest id.
func activePass(passes []models.Pass, now time.Time) *models.Pass {
	var candidates []models.Pass
	for _, p := range passes {
		if p.Status == models.PassActive && !p.ExpiresAt.Before(now) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].ExpiresAt.Equal(candidates[j].ExpiresAt) {
			return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt)
		}
		return candidates[i].Id < candidates[j].Id
	})
	return &candidates[0]
}

// PurchasePass buys a pass for a rider, paid from balance or by card.
// A balance purchase fails with storage.ErrInsufficientFunds and changes nothing.
func (e *Engine) PurchasePass(ctx context.Context, userID string, spec PassSpec, pay Payment) (*models.Pass, error) {
	if strings.TrimSpace(spec.Name) == "" || spec.PriceCents < 0 || spec.Duration <= 0 {
		return nil, ErrInvalidPass
	}

	unlock := e.locks.Lock(accountKey(userID))
	defer unlock()

	acct, err := e.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if acct.IsPool() {
		return nil, ErrNotRiderAccount
	}

	now := e.now()
	pass := models.Pass{
		Id:          newID(),
		UserId:      acct.Id,
		CatalogId:   spec.CatalogId,
		Name:        spec.Name,
		AccountType: acct.AccountType,
		PriceCents:  spec.PriceCents,
		ActivatedAt: now,
		ExpiresAt:   now.Add(spec.Duration),
		Status:      models.PassActive,
	}

	b := &storage.Batch{}
	switch pay.Method {
	case models.PayBalance:
		pass.PaidVia = models.PayBalance
		desc := fmt.Sprintf("%s — paid from balance", spec.Name)
		if _, err := stageDebit(b, acct, spec.PriceCents, models.TxPassPurchase, desc, pass.Id, now); err != nil {
			return nil, err
		}
	case models.PayCard:
		if pay.Card == nil {
			return nil, ErrInvalidCard
		}
		if err := pay.Card.Validate(now); err != nil {
			return nil, err
		}
		pass.PaidVia = models.PayCard
		desc := fmt.Sprintf("%s — card ···%s", spec.Name, pay.Card.Last4())
		stageRecord(b, acct.Id, 0, models.TxPassPurchase, desc, pass.Id, now)
	default:
		return nil, fmt.Errorf("%w: got %q", ErrInvalidPayment, pay.Method)
	}
	b.Passes = append(b.Passes, pass)

	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}
	e.logger.Info("pass purchased", "account_id", acct.Id, "pass_id", pass.Id, "paid_via", pass.PaidVia, "price", pass.PriceCents)
	return &pass, nil
}
