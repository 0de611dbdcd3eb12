// Package bootstrap builds the shared dependencies of the HTTP app and the
// lambdas from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/transit-fare-engine/pkg/config"
	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/notify"
	"github.com/chris/transit-fare-engine/pkg/storage"
	dydbstore "github.com/chris/transit-fare-engine/pkg/storage/dynamodb"
	"github.com/chris/transit-fare-engine/pkg/storage/memory"
	"github.com/chris/transit-fare-engine/pkg/websockets"
)

// Store is the full data layer: fare data plus WebSocket connections.
type Store interface {
	storage.Storage
	storage.WebSocketManager
}

// Deps are the dependencies every entry point shares.
type Deps struct {
	Config *config.Config
	Logger *slog.Logger
	// AWS is nil when nothing configured needs AWS.
	AWS    *aws.Config
	Store  Store
	Engine *fare.Engine
}

// NewLogger returns a JSON logger on stdout at the named level.
func NewLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})), nil
}

func needsAWS(cfg *config.Config) bool {
	return cfg.StorageBackend == config.BackendDynamoDB ||
		cfg.GiftQueueURL != "" ||
		cfg.WebSocketEndpoint != ""
}

// Load reads configuration and wires the store and engine it selects.
func Load(ctx context.Context) (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// New wires dependencies for an already loaded configuration.
func New(ctx context.Context, cfg *config.Config) (*Deps, error) {
	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	deps := &Deps{Config: cfg, Logger: logger}

	if needsAWS(cfg) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to load SDK config: %w", err)
		}
		deps.AWS = &awsCfg
	}

	switch cfg.StorageBackend {
	case config.BackendDynamoDB:
		deps.Store = dydbstore.New(dynamodb.NewFromConfig(*deps.AWS), cfg.Tables)
	default:
		deps.Store = memory.New()
	}

	deps.Engine = fare.NewEngine(deps.Store, cfg.Policy, fare.WithLogger(logger))
	return deps, nil
}

// Notifier returns the SQS gift notifier when a queue is configured.
func (d *Deps) Notifier() notify.Notifier {
	if d.Config.GiftQueueURL == "" || d.AWS == nil {
		d.Logger.Warn("gift queue not configured, guest notifications are disabled")
		return notify.NoOpNotifier{}
	}
	return notify.NewSQSNotifier(sqs.NewFromConfig(*d.AWS), d.Config.GiftQueueURL)
}

// Publisher returns the API Gateway publisher when an endpoint is configured,
// otherwise hub, otherwise a publisher that drops messages.
func (d *Deps) Publisher(hub *websockets.Hub) websockets.Publisher {
	if d.Config.WebSocketEndpoint != "" && d.AWS != nil {
		return websockets.NewPublisher(*d.AWS, d.Store, d.Config.WebSocketEndpoint, d.Logger)
	}
	if hub != nil {
		return hub
	}
	return &websockets.NoOpPublisher{}
}
