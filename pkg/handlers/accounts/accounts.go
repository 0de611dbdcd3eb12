package accounts

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/chris/transit-fare-engine/pkg/api"
	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/handlers/respond"
	"github.com/chris/transit-fare-engine/pkg/mapping"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/websockets"
)

// Engine is the part of the fare engine the account handlers use.
type Engine interface {
	CreateAccount(ctx context.Context, name, email string, accountType models.AccountType) (*models.Account, error)
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
	TopUp(ctx context.Context, accountID string, amountCents int64, card fare.Card) (int64, error)
	ListTransactions(ctx context.Context, accountID string, limit int32) ([]models.Transaction, error)
	ListPasses(ctx context.Context, userID string) ([]models.Pass, error)
	PurchasePass(ctx context.Context, userID string, spec fare.PassSpec, pay fare.Payment) (*models.Pass, error)
}

// AccountsHandler holds the dependencies for account, top-up and pass handlers.
type AccountsHandler struct {
	Engine    Engine
	Publisher websockets.Publisher
	Logger    *slog.Logger
}

// NewAccountsHandler creates a new AccountsHandler.
func NewAccountsHandler(engine Engine, publisher websockets.Publisher, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{Engine: engine, Publisher: publisher, Logger: logger}
}

func (h *AccountsHandler) publishBalance(ctx context.Context, accountID, reason string, change, balance int64) {
	if err := h.Publisher.Publish(ctx, websockets.NewBalanceUpdate(accountID, reason, change, balance)); err != nil {
		h.Logger.Error("failed to publish websocket message", "account_id", accountID, "error", err)
	}
}

// CreateAccount registers a rider with a zero balance.
func (h *AccountsHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req api.NewAccount
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}

	acct, err := h.Engine.CreateAccount(r.Context(), req.Name, string(req.Email), models.AccountType(req.AccountType))
	if err != nil {
		respond.Error(w, h.Logger, err, "create account")
		return
	}

	respond.JSON(w, http.StatusCreated, mapping.ToApiAccount(acct))
}

// GetAccount returns a rider's balance, fare and lock state.
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request, accountId string) {
	acct, err := h.Engine.GetAccount(r.Context(), accountId)
	if err != nil {
		respond.Error(w, h.Logger, err, "retrieve account")
		return
	}
	if acct.IsPool() {
		respond.Error(w, h.Logger, fare.ErrNotRiderAccount, "retrieve account")
		return
	}

	respond.JSON(w, http.StatusOK, mapping.ToApiAccount(acct))
}

// TopUp credits a rider's balance from a card.
func (h *AccountsHandler) TopUp(w http.ResponseWriter, r *http.Request, accountId string) {
	var req api.TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}

	balance, err := h.Engine.TopUp(r.Context(), accountId, req.AmountCents, mapping.ToDomainCard(&req.Card))
	if err != nil {
		respond.Error(w, h.Logger, err, "top up")
		return
	}

	h.publishBalance(r.Context(), accountId, string(models.TxTopUp), req.AmountCents, balance)
	respond.JSON(w, http.StatusOK, api.BalanceUpdate{AccountId: accountId, Balance: balance})
}

// ListTransactions returns the newest ledger records of an account.
func (h *AccountsHandler) ListTransactions(w http.ResponseWriter, r *http.Request, accountId string, params api.ListTransactionsParams) {
	var limit int32
	if params.Limit != nil {
		limit = *params.Limit
	}

	txs, err := h.Engine.ListTransactions(r.Context(), accountId, limit)
	if err != nil {
		respond.Error(w, h.Logger, err, "retrieve transactions")
		return
	}

	respond.JSON(w, http.StatusOK, mapping.ToApiTransactions(txs))
}

// ListPasses returns a rider's passes after expiring the stale ones.
func (h *AccountsHandler) ListPasses(w http.ResponseWriter, r *http.Request, accountId string) {
	if _, err := h.Engine.GetAccount(r.Context(), accountId); err != nil {
		respond.Error(w, h.Logger, err, "retrieve passes")
		return
	}

	passes, err := h.Engine.ListPasses(r.Context(), accountId)
	if err != nil {
		respond.Error(w, h.Logger, err, "retrieve passes")
		return
	}

	respond.JSON(w, http.StatusOK, mapping.ToApiPasses(passes))
}

// PurchasePass buys a pass paid from balance or by card.
func (h *AccountsHandler) PurchasePass(w http.ResponseWriter, r *http.Request, accountId string) {
	var req api.NewPass
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}

	spec, pay := mapping.ToDomainPassPurchase(&req)
	pass, err := h.Engine.PurchasePass(r.Context(), accountId, spec, pay)
	if err != nil {
		respond.Error(w, h.Logger, err, "purchase pass")
		return
	}

	if pass.PaidVia == models.PayBalance {
		// The purchase already committed; a failed read only skips the update.
		if acct, err := h.Engine.GetAccount(r.Context(), accountId); err != nil {
			h.Logger.Error("failed to get account for websocket message", "account_id", accountId, "error", err)
		} else {
			h.publishBalance(r.Context(), accountId, string(models.TxPassPurchase), -pass.PriceCents, acct.Balance)
		}
	}

	respond.JSON(w, http.StatusCreated, mapping.ToApiPass(pass))
}
