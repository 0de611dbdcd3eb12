package websockets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
)

// PostToConnectionAPI is the part of the API Gateway management client the publisher uses.
type PostToConnectionAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// DefaultPublisher pushes messages to API Gateway WebSocket connections.
type DefaultPublisher struct {
	store       ConnectionStore
	apiGwClient PostToConnectionAPI
	logger      *slog.Logger
}

// NewPublisher creates a DefaultPublisher that posts through the API Gateway
// management endpoint of the WebSocket API.
func NewPublisher(cfg aws.Config, store ConnectionStore, apiEndpoint string, logger *slog.Logger) *DefaultPublisher {
	apiGwClient := apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(apiEndpoint)
	})
	return NewPublisherWithClient(apiGwClient, store, logger)
}

// NewPublisherWithClient creates a DefaultPublisher around an existing client.
func NewPublisherWithClient(client PostToConnectionAPI, store ConnectionStore, logger *slog.Logger) *DefaultPublisher {
	return &DefaultPublisher{
		store:       store,
		apiGwClient: client,
		logger:      logger,
	}
}

// Publish sends a message to all connected clients. Connections that API
// Gateway reports as gone are removed; other delivery failures are logged.
func (p *DefaultPublisher) Publish(ctx context.Context, message Message) error {
	connectionIDs, err := p.store.GetAllConnections(ctx)
	if err != nil {
		return fmt.Errorf("failed to get all connections: %w", err)
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	for _, connectionID := range connectionIDs {
		_, err := p.apiGwClient.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(connectionID),
			Data:         payload,
		})
		if err == nil {
			continue
		}

		var goneErr *apigwtypes.GoneException
		if errors.As(err, &goneErr) {
			p.logger.Info("stale connection found, deleting", "connectionId", connectionID)
			if err := p.store.RemoveConnection(ctx, connectionID); err != nil {
				p.logger.Error("failed to delete stale connection", "error", err)
			}
		} else {
			p.logger.Error("failed to post to connection", "connectionId", connectionID, "error", err)
		}
	}

	return nil
}
