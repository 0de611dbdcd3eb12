package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/transit-fare-engine/pkg/bootstrap"
	wshandler "github.com/chris/transit-fare-engine/pkg/handlers/websockets"
)

func main() {
	deps, err := bootstrap.Load(context.Background())
	if err != nil {
		log.Fatalf("failed to initialise: %v", err)
	}
	// API Gateway owns the sockets, so there is no local hub.
	handler := wshandler.NewHandler(deps.Store, nil, deps.Logger)
	lambda.Start(handler.HandleRequest)
}
