// Package respond writes JSON bodies and maps engine errors to HTTP statuses.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

var badRequest = []error{
	fare.ErrInvalidAmount,
	fare.ErrInvalidRecipient,
	fare.ErrSelfGift,
	fare.ErrNotRiderAccount,
	fare.ErrInvalidPass,
	fare.ErrInvalidCard,
	fare.ErrInvalidPayment,
	fare.ErrTopUpTooSmall,
	fare.ErrTopUpTooLarge,
	fare.ErrInvalidPoolName,
	fare.ErrInvalidAccount,
	fare.ErrNotPoolMember,
	fare.ErrOwnerCannotBeRemoved,
}

var notFound = []error{
	storage.ErrAccountNotFound,
	storage.ErrTokenNotFound,
	fare.ErrPoolNotFound,
	fare.ErrSenderNotFound,
	fare.ErrRecipientNotFound,
}

var conflict = []error{
	storage.ErrConflict,
	storage.ErrAlreadyExists,
	fare.ErrAlreadyInPool,
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Status returns the HTTP status for an engine error.
func Status(err error) int {
	switch {
	case errors.Is(err, storage.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, fare.ErrNotPoolOwner):
		return http.StatusForbidden
	case isAny(err, notFound):
		return http.StatusNotFound
	case isAny(err, conflict):
		return http.StatusConflict
	case isAny(err, badRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as a plain-text response. action completes the sentence
// "Failed to ..." for unexpected errors, which are also logged.
func Error(w http.ResponseWriter, logger *slog.Logger, err error, action string) {
	status := Status(err)
	switch status {
	case http.StatusUnprocessableEntity:
		http.Error(w, "Insufficient funds", status)
	case http.StatusInternalServerError:
		logger.Error("request failed", "action", action, "error", err)
		http.Error(w, fmt.Sprintf("Failed to %s: %v", action, err), status)
	default:
		http.Error(w, err.Error(), status)
	}
}

// BadBody reports a request body that could not be decoded.
func BadBody(w http.ResponseWriter, err error) {
	http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}
