package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chris/transit-fare-engine/pkg/fare"
	"github.com/chris/transit-fare-engine/pkg/fare/faretest"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/websockets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingTapper struct{}

func (failingTapper) TapPhysical(ctx context.Context, accountID, location string) (*fare.TapResult, error) {
	return nil, errors.New("dynamodb unavailable")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(id, body string) events.SQSMessage {
	return events.SQSMessage{MessageId: id, Body: body}
}

func TestHandleRequest(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Arrange
		engine, store, _ := faretest.NewEngine(t)
		faretest.SeedUser(t, store, "usr_rider", models.Adult, 1000)
		publisher := &websockets.RecordingPublisher{}
		p := &processor{engine: engine, publisher: publisher, logger: discardLogger()}

		event := events.SQSEvent{Records: []events.SQSMessage{
			record("m-1", `{"account_id":"usr_rider","location":"Route 9"}`),
			record("m-2", `{"account_id":"usr_rider","location":"Route 9"}`),
		}}

		// Act
		resp, err := p.HandleRequest(context.Background(), event)

		// Assert
		require.NoError(t, err)
		assert.Empty(t, resp.BatchItemFailures)
		assert.Equal(t, int64(690), faretest.Balance(t, store, "usr_rider"))

		results := publisher.OfType(websockets.MessageTypeScanResult)
		require.Len(t, results, 2)
		first := results[0].Payload.(websockets.ScanResultPayload)
		second := results[1].Payload.(websockets.ScanResultPayload)
		assert.True(t, first.Accepted)
		assert.False(t, second.Accepted)
		assert.Equal(t, "anti-passback locked for 5m", second.Reason)
	})

	t.Run("Drops Unprocessable Messages", func(t *testing.T) {
		engine, _, _ := faretest.NewEngine(t)
		publisher := &websockets.RecordingPublisher{}
		p := &processor{engine: engine, publisher: publisher, logger: discardLogger()}

		event := events.SQSEvent{Records: []events.SQSMessage{
			record("m-1", `not json`),
			record("m-2", `{"location":"Route 9"}`),
			record("m-3", `{"account_id":"usr_missing"}`),
		}}

		resp, err := p.HandleRequest(context.Background(), event)

		require.NoError(t, err)
		assert.Empty(t, resp.BatchItemFailures)
		assert.Empty(t, publisher.Messages())
	})

	t.Run("Reports Failed Items", func(t *testing.T) {
		p := &processor{engine: failingTapper{}, publisher: &websockets.NoOpPublisher{}, logger: discardLogger()}

		event := events.SQSEvent{Records: []events.SQSMessage{
			record("m-1", `{"account_id":"usr_rider"}`),
		}}

		resp, err := p.HandleRequest(context.Background(), event)

		require.NoError(t, err)
		require.Len(t, resp.BatchItemFailures, 1)
		assert.Equal(t, "m-1", resp.BatchItemFailures[0].ItemIdentifier)
	})
}
