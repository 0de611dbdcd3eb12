package fare

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTapPhysical(t *testing.T) {
	ctx := context.Background()

	t.Run("Balance Then Anti-Passback", func(t *testing.T) {
		// Arrange
		e, store, clock := newTestEngine(t)
		seedUser(t, store, "usr_adult", models.Adult, 500)

		// Act
		first, err := e.TapPhysical(ctx, "usr_adult", "Route 11")
		require.NoError(t, err)
		clock.Advance(time.Minute)
		second, err := e.TapPhysical(ctx, "usr_adult", "Route 11")
		require.NoError(t, err)

		// Assert
		assert.True(t, first.Accepted)
		assert.Equal(t, models.PayBalance, first.PaymentMethod)
		assert.Equal(t, int64(310), first.FareCharged)
		assert.Equal(t, int64(190), first.NewBalance)

		acct, err := store.GetAccount(ctx, "usr_adult")
		require.NoError(t, err)
		require.NotNil(t, acct.LockedUntil)
		assert.Equal(t, t0.Add(5*time.Minute), *acct.LockedUntil)

		assert.False(t, second.Accepted)
		assert.Equal(t, "anti-passback locked for 4m", second.Reason)
		assert.Equal(t, 4*time.Minute, second.LockRemaining)
		assert.Equal(t, 4, second.LockRemainingMinutes)
		assert.Equal(t, int64(190), acct.Balance)

		txs := transactionsOf(t, store, "usr_adult")
		require.Len(t, txs, 1)
		assert.Equal(t, models.TxRide, txs[0].Type)
		assert.Equal(t, int64(-310), txs[0].Amount)
		assert.Equal(t, "NFC Tap — Route 11", txs[0].Description)
		assert.Equal(t, first.ScanId, txs[0].RelatedId)

		scans := scansOf(t, store, "usr_adult")
		require.Len(t, scans, 2)
		assert.True(t, scans[0].Accepted)
		assert.False(t, scans[1].Accepted)
		assert.Equal(t, second.Reason, scans[1].RejectReason)
		assert.False(t, scans[1].FraudFlag)
	})

	t.Run("Lock Lapses", func(t *testing.T) {
		e, store, clock := newTestEngine(t)
		seedUser(t, store, "usr_adult", models.Adult, 1000)

		_, err := e.TapPhysical(ctx, "usr_adult", "")
		require.NoError(t, err)
		clock.Advance(5 * time.Minute)
		res, err := e.TapPhysical(ctx, "usr_adult", "")
		require.NoError(t, err)

		assert.True(t, res.Accepted)
		assert.Equal(t, int64(380), res.NewBalance)
		assert.Equal(t, defaultLocation, scansOf(t, store, "usr_adult")[1].Location)
	})

	t.Run("Pass Covers Tap", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		seedUser(t, store, "usr_pass", models.Adult, 50)
		seedPass(t, store, "pass-1", "usr_pass", t0.Add(-time.Hour), t0.Add(24*time.Hour))

		res, err := e.TapPhysical(ctx, "usr_pass", "Route 2")
		require.NoError(t, err)

		assert.True(t, res.Accepted)
		assert.Equal(t, models.PayPass, res.PaymentMethod)
		assert.Equal(t, "Monthly pass-1", res.PassName)
		assert.Zero(t, res.FareCharged)
		assert.Equal(t, int64(50), balanceOf(t, store, "usr_pass"))
		assert.Empty(t, transactionsOf(t, store, "usr_pass"))
		assert.Len(t, scansOf(t, store, "usr_pass"), 1)
	})

	t.Run("Expired Pass Does Not Cover", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		seedUser(t, store, "usr_lapsed", models.Adult, 50)
		seedPass(t, store, "pass-old", "usr_lapsed", t0.Add(-48*time.Hour), t0.Add(-time.Hour))

		res, err := e.TapPhysical(ctx, "usr_lapsed", "Route 2")
		require.NoError(t, err)

		assert.False(t, res.Accepted)
		assert.Equal(t, "insufficient balance and no active pass", res.Reason)
		passes, err := store.ListPasses(ctx, "usr_lapsed")
		require.NoError(t, err)
		assert.Equal(t, models.PassExpired, passes[0].Status)
	})

	t.Run("Insufficient Balance", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		seedUser(t, store, "usr_poor", models.Youth, 200)

		res, err := e.TapPhysical(ctx, "usr_poor", "Route 5")
		require.NoError(t, err)

		assert.False(t, res.Accepted)
		assert.Equal(t, int64(200), res.NewBalance)
		assert.Equal(t, int64(200), balanceOf(t, store, "usr_poor"))
		assert.Empty(t, transactionsOf(t, store, "usr_poor"))

		scans := scansOf(t, store, "usr_poor")
		require.Len(t, scans, 1)
		assert.Equal(t, int64(230), scans[0].FareCents)
		assert.Equal(t, reasonNoFunds, scans[0].RejectReason)

		acct, _ := store.GetAccount(ctx, "usr_poor")
		assert.Nil(t, acct.LockedUntil)
	})

	t.Run("Child Rides Free", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		seedUser(t, store, "usr_child", models.Child, 0)

		res, err := e.TapPhysical(ctx, "usr_child", "Route 9")
		require.NoError(t, err)

		assert.True(t, res.Accepted)
		assert.Equal(t, models.PayBalance, res.PaymentMethod)
		assert.Zero(t, res.FareCharged)
		assert.Empty(t, transactionsOf(t, store, "usr_child"))
		assert.Len(t, scansOf(t, store, "usr_child"), 1)
	})

	t.Run("Flags Concurrent Guest Scan", func(t *testing.T) {
		e, store, clock := newTestEngine(t)
		seedUser(t, store, "usr_sender", models.Adult, 1000)
		seedUser(t, store, "usr_rider", models.Adult, 1000)
		tok, err := e.CreateGift(ctx, "usr_sender", models.GuestEmail{Address: "guest@example.com"}, 310)
		require.NoError(t, err)
		_, err = e.ScanGuestToken(ctx, tok.Id, "Route 1")
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)
		res, err := e.TapPhysical(ctx, "usr_rider", "Route 1")
		require.NoError(t, err)

		assert.True(t, res.Accepted)
		assert.True(t, res.FraudFlag)
		assert.Equal(t, int64(690), res.NewBalance)
		acct, _ := store.GetAccount(ctx, "usr_rider")
		assert.Equal(t, 1, acct.FraudFlags)
		assert.True(t, scansOf(t, store, "usr_rider")[0].FraudFlag)
	})

	t.Run("No Flag Outside Fraud Window", func(t *testing.T) {
		e, store, clock := newTestEngine(t)
		seedUser(t, store, "usr_sender", models.Adult, 1000)
		seedUser(t, store, "usr_rider", models.Adult, 1000)
		tok, err := e.CreateGift(ctx, "usr_sender", models.GuestPhone{Number: "+12045550100"}, 310)
		require.NoError(t, err)
		_, err = e.ScanGuestToken(ctx, tok.Id, "Route 1")
		require.NoError(t, err)

		clock.Advance(5 * time.Minute)
		res, err := e.TapPhysical(ctx, "usr_rider", "Route 1")
		require.NoError(t, err)

		assert.True(t, res.Accepted)
		assert.False(t, res.FraudFlag)
	})

	t.Run("Not Found", func(t *testing.T) {
		e, _, _ := newTestEngine(t)

		_, err := e.TapPhysical(ctx, "usr_missing", "Route 1")

		assert.True(t, errors.Is(err, storage.ErrAccountNotFound))
	})
}

func TestTapPhysical_ConcurrentTapsChargeOnce(t *testing.T) {
	ctx := context.Background()
	e, store, _ := newTestEngine(t)
	seedUser(t, store, "usr_busy", models.Adult, 500)

	const taps = 20
	var wg sync.WaitGroup
	results := make(chan *TapResult, taps)
	for i := 0; i < taps; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.TapPhysical(ctx, "usr_busy", "Route 1")
			if err == nil {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for res := range results {
		if res.Accepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, int64(190), balanceOf(t, store, "usr_busy"))
	assert.Len(t, transactionsOf(t, store, "usr_busy"), 1)
	assert.Len(t, scansOf(t, store, "usr_busy"), taps)
}
