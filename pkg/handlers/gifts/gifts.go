package gifts

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
	"github.com/chris/transit-fare-engine/pkg/notify"
	"github.com/chris/transit-fare-engine/pkg/websockets"
)

// Engine is the part of the fare engine the gift handlers use.
type Engine interface {
	CreateGift(ctx context.Context, senderID string, recipient models.Recipient, fareCents int64) (*models.GiftToken, error)
	GetToken(ctx context.Context, tokenID string) (*fare.TokenSnapshot, error)
	GetAccount(ctx context.Context, accountID string) (*models.Account, error)
}

// GiftsHandler holds the dependencies for gift token handlers.
type GiftsHandler struct {
	Engine    Engine
	Notifier  notify.Notifier
	Publisher websockets.Publisher
	Logger    *slog.Logger
}

// NewGiftsHandler creates a new GiftsHandler.
func NewGiftsHandler(engine Engine, notifier notify.Notifier, publisher websockets.Publisher, logger *slog.Logger) *GiftsHandler {
	return &GiftsHandler{Engine: engine, Notifier: notifier, Publisher: publisher, Logger: logger}
}

// CreateGift sends a fare to a rider or a guest.
func (h *GiftsHandler) CreateGift(w http.ResponseWriter, r *http.Request) {
	var req api.NewGift
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}
	recipient, ok := mapping.ToDomainRecipient(&req)
	if !ok {
		http.Error(w, "exactly one of recipient_user_id, recipient_email or recipient_phone is required", http.StatusBadRequest)
		return
	}

	tok, err := h.Engine.CreateGift(r.Context(), req.SenderId, recipient, req.FareCents)
	if err != nil {
		respond.Error(w, h.Logger, err, "create gift")
		return
	}

	// The gift is committed; delivery and live updates are best effort.
	if models.IsGuest(tok.Recipient) {
		if err := h.Notifier.GiftIssued(r.Context(), tok); err != nil {
			h.Logger.Error("CRITICAL: gift created but failed to enqueue notification", "token_id", tok.Id, "error", err)
		}
	}
	h.publishBalance(r.Context(), tok.SenderId, models.TxGiftSent, -tok.FareCents)
	if user, ok := tok.Recipient.(models.UserRecipient); ok {
		h.publishBalance(r.Context(), user.AccountId, models.TxGiftReceived, tok.FareCents)
	}

	respond.JSON(w, http.StatusCreated, mapping.ToApiGiftToken(tok))
}

func (h *GiftsHandler) publishBalance(ctx context.Context, accountID string, reason models.TransactionType, change int64) {
	acct, err := h.Engine.GetAccount(ctx, accountID)
	if err != nil {
		h.Logger.Error("failed to get account for websocket message", "account_id", accountID, "error", err)
		return
	}
	msg := websockets.NewBalanceUpdate(accountID, string(reason), change, acct.Balance)
	if err := h.Publisher.Publish(ctx, msg); err != nil {
		h.Logger.Error("failed to publish websocket message", "account_id", accountID, "error", err)
	}
}

// GetGift returns a gift token with its remaining guest window.
func (h *GiftsHandler) GetGift(w http.ResponseWriter, r *http.Request, tokenId string) {
	snap, err := h.Engine.GetToken(r.Context(), tokenId)
	if err != nil {
		respond.Error(w, h.Logger, err, "retrieve gift")
		return
	}

	respond.JSON(w, http.StatusOK, mapping.ToApiTokenSnapshot(snap))
}
