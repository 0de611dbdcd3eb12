package fare

import (
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
)

// lockRemaining returns how long the account's anti-passback lock still runs at now.
// Zero means the account may tap.
func lockRemaining(acct *models.Account, now time.Time) time.Duration {
	if acct.LockedUntil == nil || !acct.LockedUntil.After(now) {
		return 0
	}
	return acct.LockedUntil.Sub(now)
}

func (e *Engine) lockUntil(now time.Time) *time.Time {
	until := now.Add(e.policy.AntiPassback)
	return &until
}
