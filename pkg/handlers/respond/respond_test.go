package respond

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("debit: %w", storage.ErrInsufficientFunds):    http.StatusUnprocessableEntity,
		fmt.Errorf("get account: %w", storage.ErrAccountNotFound): http.StatusNotFound,
		storage.ErrTokenNotFound:                                  http.StatusNotFound,
		fare.ErrPoolNotFound:                                      http.StatusNotFound,
		fare.ErrNotPoolOwner:                                      http.StatusForbidden,
		fmt.Errorf("commit: %w", storage.ErrConflict):             http.StatusConflict,
		storage.ErrAlreadyExists:                                  http.StatusConflict,
		fare.ErrAlreadyInPool:                                     http.StatusConflict,
		fmt.Errorf("%w: minimum", fare.ErrTopUpTooSmall):          http.StatusBadRequest,
		fmt.Errorf("%w: maximum", fare.ErrTopUpTooLarge):          http.StatusBadRequest,
		fare.ErrSelfGift:                                          http.StatusBadRequest,
		errors.New("dynamodb unavailable"):                        http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, Status(err), err.Error())
	}
}

func TestError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Insufficient Funds", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Error(rr, logger, fmt.Errorf("x: %w", storage.ErrInsufficientFunds), "tap card")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Insufficient funds")
	})

	t.Run("Unexpected Error", func(t *testing.T) {
		rr := httptest.NewRecorder()
		Error(rr, logger, errors.New("boom"), "tap card")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "Failed to tap card: boom")
	})
}
