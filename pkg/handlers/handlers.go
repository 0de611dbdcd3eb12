package handlers

import (
	"log/slog"

	"github.com/chris/transit-fare-engine/pkg/api"
	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/handlers/accounts"
	"github.com/chris/transit-fare-engine/pkg/handlers/gifts"
	"github.com/chris/transit-fare-engine/pkg/handlers/pools"
	"github.com/chris/transit-fare-engine/pkg/handlers/scans"
	"github.com/chris/transit-fare-engine/pkg/notify"
	"github.com/chris/transit-fare-engine/pkg/websockets"
)

// ApiHandler implements the server interface by combining the per-resource handlers.
type ApiHandler struct {
	*accounts.AccountsHandler
	*scans.ScansHandler
	*gifts.GiftsHandler
	*pools.PoolsHandler
}

// NewApiHandler creates a new ApiHandler backed by one fare engine.
func NewApiHandler(engine *fare.Engine, notifier notify.Notifier, publisher websockets.Publisher, logger *slog.Logger) *ApiHandler {
	return &ApiHandler{
		AccountsHandler: accounts.NewAccountsHandler(engine, publisher, logger),
		ScansHandler:    scans.NewScansHandler(engine, publisher, logger),
		GiftsHandler:    gifts.NewGiftsHandler(engine, notifier, publisher, logger),
		PoolsHandler:    pools.NewPoolsHandler(engine, publisher, logger),
	}
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)
