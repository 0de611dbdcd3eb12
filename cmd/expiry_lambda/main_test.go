package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/fare/faretest"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExpirer struct {
	mock.Mock
}

func (m *mockExpirer) ExpireStalePasses(ctx context.Context, userID string) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockExpirer) ExpireAbandonedTokens(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		engine, store, clock := faretest.NewEngine(t)
		faretest.SeedUser(t, store, "usr_rider", models.Adult, 5000)
		faretest.SeedUser(t, store, "usr_sender", models.Adult, 1000)

		_, err := engine.PurchasePass(ctx, "usr_rider", fare.PassSpec{
			CatalogId:  "day",
			Name:       "Day Pass",
			PriceCents: 1100,
			Duration:   24 * time.Hour,
		}, fare.Payment{Method: models.PayBalance})
		require.NoError(t, err)
		token, err := engine.CreateGift(ctx, "usr_sender", models.GuestEmail{Address: "guest@example.com"}, 310)
		require.NoError(t, err)

		clock.Advance(8 * 24 * time.Hour)
		s := &sweeper{accounts: store, engine: engine, logger: discardLogger()}

		// Act
		err = s.HandleRequest(ctx)

		// Assert
		require.NoError(t, err)

		passes, err := store.ListPasses(ctx, "usr_rider")
		require.NoError(t, err)
		require.Len(t, passes, 1)
		assert.Equal(t, models.PassExpired, passes[0].Status)

		stored, err := store.GetGiftToken(ctx, token.Id)
		require.NoError(t, err)
		assert.Equal(t, models.TokenExpired, stored.Status)
		assert.Equal(t, int64(690), faretest.Balance(t, store, "usr_sender"))
	})

	t.Run("Continues Past Failed Rider", func(t *testing.T) {
		_, store, _ := faretest.NewEngine(t)
		faretest.SeedUser(t, store, "usr_a", models.Adult, 0)
		faretest.SeedUser(t, store, "usr_b", models.Adult, 0)

		expirer := new(mockExpirer)
		expirer.On("ExpireStalePasses", ctx, "usr_a").Return(0, errors.New("throttled"))
		expirer.On("ExpireStalePasses", ctx, "usr_b").Return(1, nil)
		expirer.On("ExpireAbandonedTokens", ctx).Return(0, nil)
		s := &sweeper{accounts: store, engine: expirer, logger: discardLogger()}

		err := s.HandleRequest(ctx)

		require.NoError(t, err)
		expirer.AssertExpectations(t)
	})

	t.Run("Token Sweep Error", func(t *testing.T) {
		_, store, _ := faretest.NewEngine(t)

		expirer := new(mockExpirer)
		expirer.On("ExpireAbandonedTokens", ctx).Return(0, errors.New("throttled"))
		s := &sweeper{accounts: store, engine: expirer, logger: discardLogger()}

		err := s.HandleRequest(ctx)

		assert.ErrorContains(t, err, "failed to expire abandoned tokens")
	})
}
