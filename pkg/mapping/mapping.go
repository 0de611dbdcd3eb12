package mapping

import (
	"time"

	"github.com/chris/transit-fare-engine/pkg/api"
	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/models"
)

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ToApiAccount converts a domain rider Account to an API Account.
func ToApiAccount(acct *models.Account) *api.Account {
	return &api.Account{
		Id:          acct.Id,
		Name:        acct.Name,
		Email:       acct.Email,
		AccountType: api.AccountType(acct.AccountType),
		Balance:     acct.Balance,
		Fare:        acct.AccountType.Fare(),
		FraudFlags:  acct.FraudFlags,
		PoolId:      optString(acct.PoolId),
		PoolRole:    optString(string(acct.PoolRole)),
		LockedUntil: acct.LockedUntil,
		CreatedAt:   acct.CreatedAt,
	}
}

// ToApiTransaction converts a domain ledger record to an API Transaction.
func ToApiTransaction(tx *models.Transaction) *api.Transaction {
	return &api.Transaction{
		Id:          tx.Id,
		AccountId:   tx.AccountId,
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		Description: tx.Description,
		RelatedId:   optString(tx.RelatedId),
		CreatedAt:   tx.CreatedAt,
	}
}

// ToApiTransactions converts a page of ledger records.
func ToApiTransactions(txs []models.Transaction) []*api.Transaction {
	out := make([]*api.Transaction, len(txs))
	for i := range txs {
		out[i] = ToApiTransaction(&txs[i])
	}
	return out
}

// ToApiPass converts a domain Pass to an API Pass.
func ToApiPass(p *models.Pass) *api.Pass {
	return &api.Pass{
		Id:          p.Id,
		CatalogId:   p.CatalogId,
		Name:        p.Name,
		AccountType: api.AccountType(p.AccountType),
		PriceCents:  p.PriceCents,
		PaidVia:     api.PaymentMethod(p.PaidVia),
		Status:      string(p.Status),
		ActivatedAt: p.ActivatedAt,
		ExpiresAt:   p.ExpiresAt,
	}
}

// ToApiPasses converts a list of passes.
func ToApiPasses(passes []models.Pass) []*api.Pass {
	out := make([]*api.Pass, len(passes))
	for i := range passes {
		out[i] = ToApiPass(&passes[i])
	}
	return out
}

// ToDomainCard converts API card details to the engine's Card.
func ToDomainCard(c *api.PaymentCard) fare.Card {
	return fare.Card{
		Number: c.Number,
		Expiry: c.Expiry,
		CVV:    c.Cvv,
		Name:   c.Name,
	}
}

// ToDomainPassPurchase converts an API NewPass to a pass spec and payment.
func ToDomainPassPurchase(p *api.NewPass) (fare.PassSpec, fare.Payment) {
	spec := fare.PassSpec{
		CatalogId:  p.CatalogId,
		Name:       p.Name,
		PriceCents: p.PriceCents,
		Duration:   time.Duration(p.DurationDays) * 24 * time.Hour,
	}
	pay := fare.Payment{Method: models.PaymentMethod(p.PaymentMethod)}
	if p.Card != nil {
		card := ToDomainCard(p.Card)
		pay.Card = &card
	}
	return spec, pay
}

// ToApiTapResult converts an NFC tap decision to an API TapResult.
func ToApiTapResult(res *fare.TapResult) *api.TapResult {
	out := &api.TapResult{
		Accepted:    res.Accepted,
		ScanId:      res.ScanId,
		FareCharged: res.FareCharged,
		PassName:    optString(res.PassName),
		Reason:      optString(res.Reason),
		FraudFlag:   res.FraudFlag,
	}
	if res.Accepted {
		method := api.PaymentMethod(res.PaymentMethod)
		balance := res.NewBalance
		out.PaymentMethod = &method
		out.NewBalance = &balance
	}
	if res.LockRemainingMinutes > 0 {
		minutes := res.LockRemainingMinutes
		out.LockRemainingMinutes = &minutes
	}
	return out
}

// ToApiGuestScanResult converts a guest QR scan decision.
func ToApiGuestScanResult(res *fare.GuestScanResult) *api.GuestScanResult {
	return &api.GuestScanResult{
		Accepted:     res.Accepted,
		ScanId:       res.ScanId,
		FareAmount:   res.FareAmount,
		ScanCount:    res.ScanCount,
		Reason:       optString(res.Reason),
		FraudAttempt: res.FraudAttempt,
	}
}

// ToDomainRecipient picks the single recipient set on a NewGift.
// It returns false unless exactly one of the recipient fields is present.
func ToDomainRecipient(g *api.NewGift) (models.Recipient, bool) {
	var recipients []models.Recipient
	if g.RecipientUserId != nil {
		recipients = append(recipients, models.UserRecipient{AccountId: *g.RecipientUserId})
	}
	if g.RecipientEmail != nil {
		recipients = append(recipients, models.GuestEmail{Address: string(*g.RecipientEmail)})
	}
	if g.RecipientPhone != nil {
		recipients = append(recipients, models.GuestPhone{Number: *g.RecipientPhone})
	}
	if len(recipients) != 1 {
		return nil, false
	}
	return recipients[0], true
}

// ToApiGiftToken converts a gift token to its API form.
func ToApiGiftToken(tok *models.GiftToken) *api.GiftToken {
	return &api.GiftToken{
		Id:             tok.Id,
		SenderId:       tok.SenderId,
		RecipientKind:  string(tok.Recipient.Kind()),
		Recipient:      tok.Recipient.Label(),
		FareCents:      tok.FareCents,
		Status:         string(tok.Status),
		ScanCount:      tok.ScanCount,
		CreatedAt:      tok.CreatedAt,
		ExpiresAt:      tok.ExpiresAt,
		FirstScannedAt: tok.FirstScannedAt,
		LastScannedAt:  tok.LastScannedAt,
	}
}

// ToApiTokenSnapshot converts a token snapshot, reporting the derived expiry
// and minutes left in the guest window.
func ToApiTokenSnapshot(snap *fare.TokenSnapshot) *api.GiftToken {
	out := ToApiGiftToken(&snap.Token)
	out.ExpiresAt = snap.ExpiresAt
	out.MinutesRemaining = snap.MinutesRemaining
	return out
}

// ToApiPool converts a pool and its members to an API Pool.
func ToApiPool(view *fare.PoolView) *api.Pool {
	members := make([]api.PoolMember, len(view.Members))
	for i, m := range view.Members {
		members[i] = api.PoolMember{
			AccountId: m.Id,
			Name:      m.Name,
			Email:     m.Email,
			Role:      string(m.PoolRole),
			Balance:   m.Balance,
		}
	}
	return &api.Pool{
		Id:                  view.Pool.Id,
		Name:                view.Pool.Name,
		HeadId:              view.Pool.HeadId,
		Balance:             view.Pool.Balance,
		AutoRefillThreshold: view.Pool.AutoRefillThreshold,
		AutoRefillAmount:    view.Pool.AutoRefillAmount,
		Members:             members,
		CreatedAt:           view.Pool.CreatedAt,
	}
}
