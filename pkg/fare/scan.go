package fare

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

const (
	reasonNoFunds = "insufficient balance and no active pass"
)

// TapResult is the outcome of a physical card tap. Rejections carry a Reason
// and, for anti-passback, the time left on the lock, also in whole minutes
// rounded up.
type TapResult struct {
	Accepted             bool
	PaymentMethod        models.PaymentMethod
	PassName             string
	FareCharged          int64
	NewBalance           int64
	Reason               string
	FraudFlag            bool
	LockRemaining        time.Duration
	LockRemainingMinutes int
	ScanId               string
}

// TapPhysical evaluates an NFC tap by a registered rider at location.
// Rejections are outcomes, not errors: every tap is written to the scan log.
func (e *Engine) TapPhysical(ctx context.Context, accountID, location string) (*TapResult, error) {
	if strings.TrimSpace(location) == "" {
		location = defaultLocation
	}

	unlock := e.locks.Lock(accountKey(accountID))
	defer unlock()

	acct, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if acct.IsPool() {
		return nil, ErrNotRiderAccount
	}

	now := e.now()
	fare := acct.AccountType.Fare()
	scan := models.ScanLogEntry{
		Id:        newID(),
		SubjectId: acct.Id,
		Channel:   models.ChannelNFC,
		Location:  location,
		FareCents: fare,
		ScannedAt: now,
	}
	b := &storage.Batch{}

	if remaining := lockRemaining(acct, now); remaining > 0 {
		minutes := ceilMinutes(remaining)
		res := &TapResult{
			Reason:               fmt.Sprintf("anti-passback locked for %dm", minutes),
			NewBalance:           acct.Balance,
			LockRemaining:        remaining,
			LockRemainingMinutes: minutes,
		}
		return e.rejectTap(ctx, b, scan, res)
	}

	if _, err := e.expireStalePasses(ctx, acct.Id, now); err != nil {
		return nil, err
	}
	passes, err := e.store.ListPasses(ctx, acct.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to list passes: %w", err)
	}

	res := &TapResult{Accepted: true, ScanId: scan.Id, NewBalance: acct.Balance}
	if pass := activePass(passes, now); pass != nil {
		res.PaymentMethod = models.PayPass
		res.PassName = pass.Name
		scan.FareCents = 0
	} else {
		if acct.Balance < fare {
			res = &TapResult{Reason: reasonNoFunds, NewBalance: acct.Balance}
			return e.rejectTap(ctx, b, scan, res)
		}
		res.PaymentMethod = models.PayBalance
		if fare > 0 {
			desc := fmt.Sprintf("NFC Tap — %s", location)
			balance, err := stageDebit(b, acct, fare, models.TxRide, desc, scan.Id, now)
			if err != nil {
				return nil, err
			}
			res.FareCharged = fare
			res.NewBalance = balance
		}
	}

	suspicious, err := e.suspiciousTap(ctx, acct.Id, now)
	if err != nil {
		return nil, err
	}
	w := b.Account(acct)
	if suspicious {
		w.FraudFlagsInc++
		scan.FraudFlag = true
		res.FraudFlag = true
	}
	w.LockedUntil = e.lockUntil(now)

	scan.Accepted = true
	b.Scans = append(b.Scans, scan)
	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}

	e.logger.Info("tap accepted",
		"account_id", acct.Id,
		"location", location,
		"payment_method", res.PaymentMethod,
		"fare", res.FareCharged,
		"balance", res.NewBalance,
	)
	if suspicious {
		e.logger.Warn("tap flagged for concurrent guest scan", "account_id", acct.Id, "scan_id", scan.Id)
	}
	return res, nil
}

func (e *Engine) rejectTap(ctx context.Context, b *storage.Batch, scan models.ScanLogEntry, res *TapResult) (*TapResult, error) {
	scan.RejectReason = res.Reason
	b.Scans = append(b.Scans, scan)
	if err := e.commit(ctx, b); err != nil {
		return nil, err
	}
	res.ScanId = scan.Id
	e.logger.Info("tap rejected", "account_id", scan.SubjectId, "location", scan.Location, "reason", res.Reason)
	return res, nil
}
