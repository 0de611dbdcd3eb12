package main

import (
	"context"
	"log"
	"net/http"

	"github.com/chris/transit-fare-engine/pkg/api"
	"github.com/chris/transit-fare-engine/pkg/bootstrap"
	"github.com/chris/transit-fare-engine/pkg/handlers"
	wshandler "github.com/chris/transit-fare-engine/pkg/handlers/websockets"
	appmw "github.com/chris/transit-fare-engine/pkg/middleware"
	"github.com/chris/transit-fare-engine/pkg/websockets"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	deps, err := bootstrap.Load(context.Background())
	if err != nil {
		log.Fatalf("failed to initialise: %v", err)
	}

	// Local clients subscribe on /ws. Behind API Gateway the publisher posts
	// to the connections registered by the websocket lambda instead.
	hub := websockets.NewHub(deps.Logger)
	handler := handlers.NewApiHandler(deps.Engine, deps.Notifier(), deps.Publisher(hub), deps.Logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(appmw.NewStructuredLogger(deps.Logger))
	router.Use(middleware.Recoverer)

	router.Handle("/ws", wshandler.NewHandler(deps.Store, hub, deps.Logger))
	api.HandlerFromMux(handler, router)

	port := deps.Config.HTTPPort
	deps.Logger.Info("starting server", "port", port, "storage_backend", deps.Config.StorageBackend)

	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
