package fare

import (
	"context"
	"fmt"
	"time"
)

// suspiciousTap reports whether some other credential completed a guest QR
// scan inside the fraud window before now. The result is advisory only.
func (e *Engine) suspiciousTap(ctx context.Context, accountID string, now time.Time) (bool, error) {
	since := now.Add(-e.policy.FraudWindow)
	hit, err := e.store.HasAcceptedGuestScanSince(ctx, since, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to check recent guest scans: %w", err)
	}
	return hit, nil
}
