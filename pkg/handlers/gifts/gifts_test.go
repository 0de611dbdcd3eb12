package gifts_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chris/transit-fare-engine/pkg/api"
	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/fare/faretest"
	"github.com/chris/transit-fare-engine/pkg/handlers/gifts"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage/memory"
	"github.com/chris/transit-fare-engine/pkg/websockets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) GiftIssued(ctx context.Context, token *models.GiftToken) error {
	return m.Called(ctx, token).Error(0)
}

type fixture struct {
	h        *gifts.GiftsHandler
	engine   *fare.Engine
	store    *memory.Store
	clock    *faretest.Clock
	notifier *mockNotifier
	pub      *websockets.RecordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, store, clock := faretest.NewEngine(t)
	notifier := new(mockNotifier)
	pub := &websockets.RecordingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	faretest.SeedUser(t, store, "usr_sender", models.Adult, 1000)
	faretest.SeedUser(t, store, "usr_friend", models.Youth, 0)
	return &fixture{
		h:        gifts.NewGiftsHandler(engine, notifier, pub, logger),
		engine:   engine,
		store:    store,
		clock:    clock,
		notifier: notifier,
		pub:      pub,
	}
}

func (f *fixture) create(t *testing.T, body string) (*httptest.ResponseRecorder, api.GiftToken) {
	t.Helper()
	rr := httptest.NewRecorder()
	f.h.CreateGift(rr, httptest.NewRequest(http.MethodPost, "/gifts", strings.NewReader(body)))
	var tok api.GiftToken
	if rr.Code == http.StatusCreated {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tok))
	}
	return rr, tok
}

func TestCreateGift(t *testing.T) {
	t.Run("Guest Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.notifier.On("GiftIssued", mock.Anything, mock.MatchedBy(func(tok *models.GiftToken) bool {
			return tok.Recipient == models.GuestEmail{Address: "guest@example.com"}
		})).Return(nil).Once()

		// Act
		rr, tok := f.create(t, `{"sender_id":"usr_sender","recipient_email":"guest@example.com","fare_cents":310}`)

		// Assert
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.True(t, strings.HasPrefix(tok.Id, "GT-"))
		assert.Equal(t, "pending", tok.Status)
		assert.Equal(t, "guest_email", tok.RecipientKind)
		assert.Equal(t, int64(690), faretest.Balance(t, f.store, "usr_sender"))

		updates := f.pub.OfType(websockets.MessageTypeBalanceUpdate)
		require.Len(t, updates, 1)
		assert.Equal(t, int64(690), updates[0].Payload.(websockets.BalanceUpdatePayload).NewBalance)
		f.notifier.AssertExpectations(t)
	})

	t.Run("Known Rider Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t)

		// Act
		rr, tok := f.create(t, `{"sender_id":"usr_sender","recipient_user_id":"usr_friend","fare_cents":230}`)

		// Assert
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "used", tok.Status)
		assert.Equal(t, int64(770), faretest.Balance(t, f.store, "usr_sender"))
		assert.Equal(t, int64(230), faretest.Balance(t, f.store, "usr_friend"))
		assert.Len(t, f.pub.OfType(websockets.MessageTypeBalanceUpdate), 2)
		f.notifier.AssertNotCalled(t, "GiftIssued", mock.Anything, mock.Anything)
	})

	t.Run("Notification Failure Keeps Gift", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.notifier.On("GiftIssued", mock.Anything, mock.Anything).Return(errors.New("queue down")).Once()

		// Act
		rr, _ := f.create(t, `{"sender_id":"usr_sender","recipient_phone":"+15550100","fare_cents":310}`)

		// Assert
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, int64(690), faretest.Balance(t, f.store, "usr_sender"))
		f.notifier.AssertExpectations(t)
	})

	t.Run("Insufficient Funds", func(t *testing.T) {
		f := newFixture(t)

		rr, _ := f.create(t, `{"sender_id":"usr_friend","recipient_phone":"+15550100","fare_cents":310}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Empty(t, f.pub.Messages())
	})

	t.Run("Two Recipients", func(t *testing.T) {
		f := newFixture(t)

		rr, _ := f.create(t, `{"sender_id":"usr_sender","recipient_user_id":"usr_friend","recipient_phone":"+15550100","fare_cents":310}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, int64(1000), faretest.Balance(t, f.store, "usr_sender"))
	})

	t.Run("Self Gift", func(t *testing.T) {
		f := newFixture(t)

		rr, _ := f.create(t, `{"sender_id":"usr_sender","recipient_user_id":"usr_sender","fare_cents":310}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Unknown Recipient", func(t *testing.T) {
		f := newFixture(t)

		rr, _ := f.create(t, `{"sender_id":"usr_sender","recipient_user_id":"usr_nobody","fare_cents":310}`)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestGetGift(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		tok, err := f.engine.CreateGift(context.Background(), "usr_sender", models.GuestPhone{Number: "+15550100"}, 310)
		require.NoError(t, err)
		_, err = f.engine.ScanGuestToken(context.Background(), tok.Id, "Route 1")
		require.NoError(t, err)
		f.clock.Advance(30 * time.Minute)
		rr := httptest.NewRecorder()

		// Act
		f.h.GetGift(rr, httptest.NewRequest(http.MethodGet, "/gifts/"+tok.Id, nil), tok.Id)

		// Assert
		require.Equal(t, http.StatusOK, rr.Code)
		var got api.GiftToken
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, "active", got.Status)
		require.NotNil(t, got.MinutesRemaining)
		assert.Equal(t, 60, *got.MinutesRemaining)
		assert.True(t, faretest.Start.Add(90*time.Minute).Equal(got.ExpiresAt))
	})

	t.Run("Not Found", func(t *testing.T) {
		f := newFixture(t)
		rr := httptest.NewRecorder()

		f.h.GetGift(rr, httptest.NewRequest(http.MethodGet, "/gifts/GT-NOPE", nil), "GT-NOPE")

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
