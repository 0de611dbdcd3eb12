package fare

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monthly = PassSpec{CatalogId: "adult-monthly", Name: "Adult Monthly", PriceCents: 10000, Duration: 30 * 24 * time.Hour}

func validCard() Card {
	return Card{Number: "4111 1111 1111 1234", Expiry: "12/29", CVV: "123", Name: "Pat Rider"}
}

func TestExpireStalePasses_Idempotent(t *testing.T) {
	ctx := context.Background()
	e, store, clock := newTestEngine(t)
	seedUser(t, store, "usr_rider", models.Adult, 0)
	seedPass(t, store, "pass-1", "usr_rider", t0, t0.Add(time.Hour))

	clock.Advance(2 * time.Hour)
	n, err := e.ExpireStalePasses(ctx, "usr_rider")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for i := 0; i < 3; i++ {
		n, err = e.ExpireStalePasses(ctx, "usr_rider")
		require.NoError(t, err)
		assert.Zero(t, n)
	}

	passes, err := e.ListPasses(ctx, "usr_rider")
	require.NoError(t, err)
	require.Len(t, passes, 1)
	assert.Equal(t, models.PassExpired, passes[0].Status)
}

func TestActivePass_PicksSoonestExpiry(t *testing.T) {
	passes := []models.Pass{
		{Id: "b", Status: models.PassActive, ExpiresAt: t0.Add(48 * time.Hour)},
		{Id: "c", Status: models.PassActive, ExpiresAt: t0.Add(24 * time.Hour)},
		{Id: "a", Status: models.PassActive, ExpiresAt: t0.Add(24 * time.Hour)},
		{Id: "d", Status: models.PassExpired, ExpiresAt: t0.Add(time.Hour)},
	}

	got := activePass(passes, t0)

	require.NotNil(t, got)
	assert.Equal(t, "a", got.Id)
	assert.Nil(t, activePass(passes[3:], t0))
}

func TestPurchasePass(t *testing.T) {
	ctx := context.Background()

	t.Run("Paid From Balance", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		seedUser(t, store, "usr_rider", models.Adult, 12000)

		pass, err := e.PurchasePass(ctx, "usr_rider", monthly, Payment{Method: models.PayBalance})
		require.NoError(t, err)

		assert.Equal(t, models.PassActive, pass.Status)
		assert.Equal(t, models.PayBalance, pass.PaidVia)
		assert.Equal(t, t0.Add(monthly.Duration), pass.ExpiresAt)
		assert.Equal(t, int64(2000), balanceOf(t, store, "usr_rider"))

		txs := transactionsOf(t, store, "usr_rider")
		require.Len(t, txs, 1)
		assert.Equal(t, models.TxPassPurchase, txs[0].Type)
		assert.Equal(t, int64(-10000), txs[0].Amount)
		assert.Equal(t, pass.Id, txs[0].RelatedId)
	})

	t.Run("Paid By Card", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		seedUser(t, store, "usr_rider", models.Adult, 50)
		card := validCard()

		pass, err := e.PurchasePass(ctx, "usr_rider", monthly, Payment{Method: models.PayCard, Card: &card})
		require.NoError(t, err)

		assert.Equal(t, models.PayCard, pass.PaidVia)
		assert.Equal(t, int64(50), balanceOf(t, store, "usr_rider"))
		txs := transactionsOf(t, store, "usr_rider")
		require.Len(t, txs, 1)
		assert.Zero(t, txs[0].Amount)
		assert.Equal(t, "Adult Monthly — card ···1234", txs[0].Description)

		res, err := e.TapPhysical(ctx, "usr_rider", "Route 4")
		require.NoError(t, err)
		assert.Equal(t, models.PayPass, res.PaymentMethod)
	})

	t.Run("Insufficient Funds", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		seedUser(t, store, "usr_rider", models.Adult, 500)

		_, err := e.PurchasePass(ctx, "usr_rider", monthly, Payment{Method: models.PayBalance})

		assert.True(t, errors.Is(err, storage.ErrInsufficientFunds))
		passes, _ := store.ListPasses(ctx, "usr_rider")
		assert.Empty(t, passes)
		assert.Empty(t, transactionsOf(t, store, "usr_rider"))
	})

	t.Run("Invalid Card", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		seedUser(t, store, "usr_rider", models.Adult, 0)
		card := validCard()
		card.CVV = "1"

		_, err := e.PurchasePass(ctx, "usr_rider", monthly, Payment{Method: models.PayCard, Card: &card})

		assert.True(t, errors.Is(err, ErrInvalidCard))
	})

	t.Run("Invalid Pass", func(t *testing.T) {
		e, store, _ := newTestEngine(t)
		seedUser(t, store, "usr_rider", models.Adult, 0)

		_, err := e.PurchasePass(ctx, "usr_rider", PassSpec{Name: "Broken"}, Payment{Method: models.PayBalance})

		assert.True(t, errors.Is(err, ErrInvalidPass))
	})
}
