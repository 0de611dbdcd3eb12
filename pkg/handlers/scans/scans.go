package scans

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chris/transit-fare-engine/pkg/api"
	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/handlers/respond"
	"github.com/chris/transit-fare-engine/pkg/mapping"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/websockets"
)

// Engine is the part of the fare engine the validator endpoints use.
type Engine interface {
	TapPhysical(ctx context.Context, accountID, location string) (*fare.TapResult, error)
	ScanGuestToken(ctx context.Context, tokenID, location string) (*fare.GuestScanResult, error)
}

// ScansHandler serves the NFC and QR validator endpoints.
type ScansHandler struct {
	Engine    Engine
	Publisher websockets.Publisher
	Logger    *slog.Logger
}

// NewScansHandler creates a new ScansHandler.
func NewScansHandler(engine Engine, publisher websockets.Publisher, logger *slog.Logger) *ScansHandler {
	return &ScansHandler{Engine: engine, Publisher: publisher, Logger: logger}
}

func (h *ScansHandler) publish(ctx context.Context, msg websockets.Message) {
	if err := h.Publisher.Publish(ctx, msg); err != nil {
		h.Logger.Error("failed to publish websocket message", "type", msg.Type, "error", err)
	}
}

func location(loc *string) string {
	if loc == nil {
		return ""
	}
	return *loc
}

// TapCard evaluates an NFC card tap. Rejections are decisions, not errors,
// and are returned with 200 and a reason.
func (h *ScansHandler) TapCard(w http.ResponseWriter, r *http.Request) {
	var req api.TapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}
	if strings.TrimSpace(req.AccountId) == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	res, err := h.Engine.TapPhysical(r.Context(), req.AccountId, location(req.Location))
	if err != nil {
		respond.Error(w, h.Logger, err, "process tap")
		return
	}

	h.publish(r.Context(), websockets.NewScanResult(websockets.ScanResultPayload{
		ScanID:    res.ScanId,
		SubjectID: req.AccountId,
		Channel:   string(models.ChannelNFC),
		Location:  location(req.Location),
		Accepted:  res.Accepted,
		Reason:    res.Reason,
		FraudFlag: res.FraudFlag,
	}))
	if res.Accepted && res.FareCharged > 0 {
		h.publish(r.Context(), websockets.NewBalanceUpdate(req.AccountId, string(models.TxRide), -res.FareCharged, res.NewBalance))
	}

	respond.JSON(w, http.StatusOK, mapping.ToApiTapResult(res))
}

// ScanGuestToken evaluates a guest QR scan.
func (h *ScansHandler) ScanGuestToken(w http.ResponseWriter, r *http.Request) {
	var req api.GuestScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}
	if strings.TrimSpace(req.TokenId) == "" {
		http.Error(w, "token_id is required", http.StatusBadRequest)
		return
	}

	res, err := h.Engine.ScanGuestToken(r.Context(), req.TokenId, location(req.Location))
	if err != nil {
		respond.Error(w, h.Logger, err, "process guest scan")
		return
	}

	h.publish(r.Context(), websockets.NewScanResult(websockets.ScanResultPayload{
		ScanID:    res.ScanId,
		SubjectID: req.TokenId,
		Channel:   string(models.ChannelGuestQR),
		Location:  location(req.Location),
		Accepted:  res.Accepted,
		Reason:    res.Reason,
		FraudFlag: res.FraudAttempt,
	}))

	respond.JSON(w, http.StatusOK, mapping.ToApiGuestScanResult(res))
}
