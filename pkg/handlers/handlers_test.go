package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chris/transit-fare-engine/pkg/api"
	"github.com/chris/transit-fare-engine/pkg/fare/faretest"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/notify"
	"github.com/chris/transit-fare-engine/pkg/storage/memory"
	"github.com/chris/transit-fare-engine/pkg/websockets"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	router http.Handler
	store  *memory.Store
	clock  *faretest.Clock
}

func newServer(t *testing.T) *server {
	t.Helper()
	engine, store, clock := faretest.NewEngine(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewApiHandler(engine, notify.NoOpNotifier{}, &websockets.NoOpPublisher{}, logger)
	return &server{router: api.HandlerFromMux(h, chi.NewRouter()), store: store, clock: clock}
}

func (s *server) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(method, path, reader))
	if out != nil && rr.Code < 300 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
	}
	return rr.Code
}

func TestRouter_AdultTapAndLock(t *testing.T) {
	// Arrange
	s := newServer(t)
	faretest.SeedUser(t, s.store, "usr_adult", models.Adult, 1000)

	// Act
	var first, second api.TapResult
	code1 := s.do(t, http.MethodPost, "/scans/nfc", `{"account_id":"usr_adult","location":"Route 9"}`, &first)
	s.clock.Advance(2 * time.Minute)
	code2 := s.do(t, http.MethodPost, "/scans/nfc", `{"account_id":"usr_adult","location":"Route 9"}`, &second)

	// Assert
	require.Equal(t, http.StatusOK, code1)
	require.Equal(t, http.StatusOK, code2)
	assert.True(t, first.Accepted)
	assert.Equal(t, int64(690), *first.NewBalance)
	assert.False(t, second.Accepted)
	assert.Equal(t, "anti-passback locked for 3m", *second.Reason)

	var acct api.Account
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/accounts/usr_adult", "", &acct))
	assert.Equal(t, int64(690), acct.Balance)

	var txs []api.Transaction
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/accounts/usr_adult/transactions?limit=5", "", &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, int64(-310), txs[0].Amount)
	assert.Equal(t, "NFC Tap — Route 9", txs[0].Description)
}

func TestRouter_GuestGiftLifecycle(t *testing.T) {
	// Arrange
	s := newServer(t)
	faretest.SeedUser(t, s.store, "usr_sender", models.Adult, 1000)

	// Act
	var tok api.GiftToken
	code := s.do(t, http.MethodPost, "/gifts", `{"sender_id":"usr_sender","recipient_email":"guest@example.com","fare_cents":310}`, &tok)
	require.Equal(t, http.StatusCreated, code)

	var firstScan, rescan, lateScan api.GuestScanResult
	s.do(t, http.MethodPost, "/scans/qr", `{"token_id":"`+tok.Id+`"}`, &firstScan)
	s.clock.Advance(time.Minute)
	s.do(t, http.MethodPost, "/scans/qr", `{"token_id":"`+tok.Id+`"}`, &rescan)
	s.clock.Advance(90 * time.Minute)
	s.do(t, http.MethodPost, "/scans/qr", `{"token_id":"`+tok.Id+`"}`, &lateScan)

	// Assert
	assert.True(t, firstScan.Accepted)
	assert.False(t, rescan.Accepted)
	assert.True(t, rescan.FraudAttempt)
	assert.False(t, lateScan.Accepted)
	assert.Equal(t, "guest pass expired", *lateScan.Reason)
	assert.Equal(t, int64(690), faretest.Balance(t, s.store, "usr_sender"))

	var got api.GiftToken
	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/gifts/"+tok.Id, "", &got))
	assert.Equal(t, "expired", got.Status)
}

func TestRouter_PassCoveredTap(t *testing.T) {
	// Arrange
	s := newServer(t)
	faretest.SeedUser(t, s.store, "usr_pass", models.Adult, 50)
	var pass api.Pass
	code := s.do(t, http.MethodPost, "/accounts/usr_pass/passes",
		`{"catalog_id":"monthly","name":"Adult Monthly","price_cents":10000,"duration_days":30,"payment_method":"card",
		  "card":{"number":"4111111111111234","expiry":"12/29","cvv":"123","name":"Pat Rider"}}`, &pass)
	require.Equal(t, http.StatusCreated, code)

	// Act
	var res api.TapResult
	code = s.do(t, http.MethodPost, "/scans/nfc", `{"account_id":"usr_pass"}`, &res)

	// Assert
	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.Accepted)
	assert.Equal(t, api.PaymentMethodPass, *res.PaymentMethod)
	assert.Equal(t, "Adult Monthly", *res.PassName)
	assert.Equal(t, int64(0), res.FareCharged)
	assert.Equal(t, int64(50), faretest.Balance(t, s.store, "usr_pass"))
}

func TestRouter_ParameterBinding(t *testing.T) {
	s := newServer(t)
	faretest.SeedUser(t, s.store, "usr_1", models.Adult, 0)

	t.Run("Invalid Limit", func(t *testing.T) {
		code := s.do(t, http.MethodGet, "/accounts/usr_1/transactions?limit=lots", "", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Missing Requester", func(t *testing.T) {
		code := s.do(t, http.MethodDelete, "/pools/pool_x/members/usr_1", "", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("Unknown Route", func(t *testing.T) {
		code := s.do(t, http.MethodGet, "/wallets", "", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})
}
