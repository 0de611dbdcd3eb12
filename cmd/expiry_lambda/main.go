package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/transit-fare-engine/pkg/bootstrap"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

type expirer interface {
	ExpireStalePasses(ctx context.Context, userID string) (int, error)
	ExpireAbandonedTokens(ctx context.Context) (int, error)
}

type sweeper struct {
	accounts storage.AccountReader
	engine   expirer
	logger   *slog.Logger
}

// HandleRequest is triggered by an EventBridge Schedule. It expires lapsed
// passes for every rider, then pending gift tokens past their outer expiry.
func (s *sweeper) HandleRequest(ctx context.Context) error {
	s.logger.Info("starting expiry sweep")

	riders, err := s.accounts.ListAccounts(ctx, models.KindUser)
	if err != nil {
		return fmt.Errorf("failed to list riders: %w", err)
	}

	passes, failed := 0, 0
	for _, rider := range riders {
		n, err := s.engine.ExpireStalePasses(ctx, rider.Id)
		if err != nil {
			// One rider failing should not stop the sweep.
			s.logger.Error("failed to expire passes", "account_id", rider.Id, "error", err)
			failed++
			continue
		}
		passes += n
	}

	tokens, err := s.engine.ExpireAbandonedTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to expire abandoned tokens: %w", err)
	}

	s.logger.Info("expiry sweep finished",
		"riders", len(riders),
		"passes_expired", passes,
		"tokens_expired", tokens,
		"failures", failed,
	)
	return nil
}

func main() {
	deps, err := bootstrap.Load(context.Background())
	if err != nil {
		log.Fatalf("failed to initialise: %v", err)
	}
	s := &sweeper{accounts: deps.Store, engine: deps.Engine, logger: deps.Logger}
	lambda.Start(s.HandleRequest)
}
