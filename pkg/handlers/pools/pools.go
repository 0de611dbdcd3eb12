package pools

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

// Engine is the part of the fare engine the pool handlers use.
type Engine interface {
	GetPool(ctx context.Context, poolID string) (*fare.PoolView, error)
	CreatePool(ctx context.Context, headID, name string) (*fare.PoolView, error)
	AddPoolMember(ctx context.Context, poolID, requesterID, email string) (*fare.PoolView, error)
	RemovePoolMember(ctx context.Context, poolID, requesterID, memberID string) (*fare.PoolView, error)
	RenamePool(ctx context.Context, poolID, requesterID, name string) (*fare.PoolView, error)
	LeavePool(ctx context.Context, poolID, userID string) error
	ContributeToPool(ctx context.Context, poolID, memberID string, amount int64) (*fare.PoolView, error)
	AllocateFromPool(ctx context.Context, poolID, requesterID, memberID string, amount int64) (*fare.PoolView, error)
}

// PoolsHandler holds the dependencies for shared pool handlers.
type PoolsHandler struct {
	Engine    Engine
	Publisher websockets.Publisher
	Logger    *slog.Logger
}

// NewPoolsHandler creates a new PoolsHandler.
func NewPoolsHandler(engine Engine, publisher websockets.Publisher, logger *slog.Logger) *PoolsHandler {
	return &PoolsHandler{Engine: engine, Publisher: publisher, Logger: logger}
}

func (h *PoolsHandler) writePool(w http.ResponseWriter, status int, view *fare.PoolView) {
	respond.JSON(w, status, mapping.ToApiPool(view))
}

// publishTransfer announces the new balances of the pool and the member on
// the other side of a transfer.
func (h *PoolsHandler) publishTransfer(ctx context.Context, view *fare.PoolView, memberID string, poolChange int64) {
	msgs := []websockets.Message{
		websockets.NewBalanceUpdate(view.Pool.Id, string(models.TxPoolTransfer), poolChange, view.Pool.Balance),
	}
	for _, m := range view.Members {
		if m.Id == memberID {
			msgs = append(msgs, websockets.NewBalanceUpdate(m.Id, string(models.TxPoolTransfer), -poolChange, m.Balance))
		}
	}
	for _, msg := range msgs {
		if err := h.Publisher.Publish(ctx, msg); err != nil {
			h.Logger.Error("failed to publish websocket message", "pool_id", view.Pool.Id, "error", err)
		}
	}
}

// CreatePool creates a shared balance owned by the requesting rider.
func (h *PoolsHandler) CreatePool(w http.ResponseWriter, r *http.Request) {
	var req api.NewPool
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}

	view, err := h.Engine.CreatePool(r.Context(), req.HeadId, req.Name)
	if err != nil {
		respond.Error(w, h.Logger, err, "create pool")
		return
	}
	h.writePool(w, http.StatusCreated, view)
}

// GetPool returns a pool and its members.
func (h *PoolsHandler) GetPool(w http.ResponseWriter, r *http.Request, poolId string) {
	view, err := h.Engine.GetPool(r.Context(), poolId)
	if err != nil {
		respond.Error(w, h.Logger, err, "retrieve pool")
		return
	}
	h.writePool(w, http.StatusOK, view)
}

// AddPoolMember links a rider, found by e-mail, to the pool.
func (h *PoolsHandler) AddPoolMember(w http.ResponseWriter, r *http.Request, poolId string) {
	var req api.AddPoolMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}

	view, err := h.Engine.AddPoolMember(r.Context(), poolId, req.RequesterId, string(req.Email))
	if err != nil {
		respond.Error(w, h.Logger, err, "add pool member")
		return
	}
	h.writePool(w, http.StatusOK, view)
}

// RemovePoolMember unlinks a member from the pool.
func (h *PoolsHandler) RemovePoolMember(w http.ResponseWriter, r *http.Request, poolId string, memberId string, params api.RemovePoolMemberParams) {
	view, err := h.Engine.RemovePoolMember(r.Context(), poolId, params.RequesterId, memberId)
	if err != nil {
		respond.Error(w, h.Logger, err, "remove pool member")
		return
	}
	h.writePool(w, http.StatusOK, view)
}

// RenamePool changes the pool's display name.
func (h *PoolsHandler) RenamePool(w http.ResponseWriter, r *http.Request, poolId string) {
	var req api.RenamePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}

	view, err := h.Engine.RenamePool(r.Context(), poolId, req.RequesterId, req.Name)
	if err != nil {
		respond.Error(w, h.Logger, err, "rename pool")
		return
	}
	h.writePool(w, http.StatusOK, view)
}

// LeavePool removes the caller from the pool, dissolving it when the owner leaves.
func (h *PoolsHandler) LeavePool(w http.ResponseWriter, r *http.Request, poolId string) {
	var req api.LeavePoolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}

	if err := h.Engine.LeavePool(r.Context(), poolId, req.AccountId); err != nil {
		respond.Error(w, h.Logger, err, "leave pool")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ContributeToPool moves money from a member's balance into the pool.
func (h *PoolsHandler) ContributeToPool(w http.ResponseWriter, r *http.Request, poolId string) {
	var req api.ContributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}

	view, err := h.Engine.ContributeToPool(r.Context(), poolId, req.MemberId, req.AmountCents)
	if err != nil {
		respond.Error(w, h.Logger, err, "contribute to pool")
		return
	}
	h.publishTransfer(r.Context(), view, req.MemberId, req.AmountCents)
	h.writePool(w, http.StatusOK, view)
}

// AllocateFromPool moves money from the pool to a member. Owner only.
func (h *PoolsHandler) AllocateFromPool(w http.ResponseWriter, r *http.Request, poolId string) {
	var req api.AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadBody(w, err)
		return
	}

	view, err := h.Engine.AllocateFromPool(r.Context(), poolId, req.RequesterId, req.MemberId, req.AmountCents)
	if err != nil {
		respond.Error(w, h.Logger, err, "allocate from pool")
		return
	}
	h.publishTransfer(r.Context(), view, req.MemberId, -req.AmountCents)
	h.writePool(w, http.StatusOK, view)
}
