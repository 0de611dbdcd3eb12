package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/transit-fare-engine/pkg/bootstrap"
	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
	"github.com/chris/transit-fare-engine/pkg/websockets"
)

// tapMessage is one reader tap as queued by the gate hardware.
type tapMessage struct {
	AccountID string `json:"account_id"`
	Location  string `json:"location"`
}

type tapper interface {
	TapPhysical(ctx context.Context, accountID, location string) (*fare.TapResult, error)
}

type processor struct {
	engine    tapper
	publisher websockets.Publisher
	logger    *slog.Logger
}

// HandleRequest evaluates each queued tap. Messages that can never succeed are
// dropped; storage failures are reported back so SQS redelivers only those.
func (p *processor) HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, message := range sqsEvent.Records {
		var tap tapMessage
		if err := json.Unmarshal([]byte(message.Body), &tap); err != nil || tap.AccountID == "" {
			p.logger.Error("dropping malformed tap message", "message_id", message.MessageId, "error", err)
			continue
		}

		res, err := p.engine.TapPhysical(ctx, tap.AccountID, tap.Location)
		switch {
		case errors.Is(err, storage.ErrAccountNotFound), errors.Is(err, fare.ErrNotRiderAccount):
			p.logger.Warn("dropping tap for unknown rider", "message_id", message.MessageId, "account_id", tap.AccountID, "error", err)
			continue
		case err != nil:
			p.logger.Error("failed to process tap", "message_id", message.MessageId, "account_id", tap.AccountID, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
			continue
		}

		msg := websockets.NewScanResult(websockets.ScanResultPayload{
			ScanID:    res.ScanId,
			SubjectID: tap.AccountID,
			Channel:   string(models.ChannelNFC),
			Location:  tap.Location,
			Accepted:  res.Accepted,
			Reason:    res.Reason,
			FraudFlag: res.FraudFlag,
		})
		if err := p.publisher.Publish(ctx, msg); err != nil {
			p.logger.Error("failed to publish scan result", "scan_id", res.ScanId, "error", err)
		}
	}
	return resp, nil
}

func main() {
	deps, err := bootstrap.Load(context.Background())
	if err != nil {
		log.Fatalf("failed to initialise: %v", err)
	}
	p := &processor{engine: deps.Engine, publisher: deps.Publisher(nil), logger: deps.Logger}
	lambda.Start(p.HandleRequest)
}
