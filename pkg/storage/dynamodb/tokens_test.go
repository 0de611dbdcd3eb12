package dynamodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
	"github.com/chris/transit-fare-engine/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestGetGiftToken(t *testing.T) {
	first := created.Add(time.Minute)
	token := &models.GiftToken{
		Id:             "GT-ABCDEF1234",
		SenderId:       "usr_1",
		Recipient:      models.GuestPhone{Number: "+12045550100"},
		FareCents:      310,
		Status:         models.TokenActive,
		CreatedAt:      created,
		ExpiresAt:      created.Add(7 * 24 * time.Hour),
		FirstScannedAt: &first,
		LastScannedAt:  &first,
		ScanCount:      1,
	}

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		av, err := attributevalue.MarshalMap(toGiftTokenItem(token))
		assert.NoError(t, err)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: av}, nil)

		store := New(mockClient, testTables)
		result, err := store.GetGiftToken(context.Background(), token.Id)

		assert.NoError(t, err)
		assert.Equal(t, token, result)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

		store := New(mockClient, testTables)
		_, err := store.GetGiftToken(context.Background(), "GT-MISSING")

		assert.True(t, errors.Is(err, storage.ErrTokenNotFound))
		mockClient.AssertExpectations(t)
	})

	t.Run("Unknown Recipient Kind", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		item := toGiftTokenItem(token)
		item.RecipientKind = "carrier_pigeon"
		av, _ := attributevalue.MarshalMap(item)
		mockClient.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: av}, nil)

		store := New(mockClient, testTables)
		_, err := store.GetGiftToken(context.Background(), token.Id)

		assert.ErrorContains(t, err, "unknown recipient kind")
		mockClient.AssertExpectations(t)
	})
}

func TestListAbandonedTokens(t *testing.T) {
	pending := &models.GiftToken{
		Id:        "GT-PENDING01",
		SenderId:  "usr_1",
		Recipient: models.GuestEmail{Address: "g@example.com"},
		FareCents: 230,
		Status:    models.TokenPending,
		CreatedAt: created,
		ExpiresAt: created.Add(time.Hour),
	}

	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		av, _ := attributevalue.MarshalMap(toGiftTokenItem(pending))
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			cutoff := in.ExpressionAttributeValues[":cutoff"].(*types.AttributeValueMemberN)
			return *in.IndexName == tokensStatusIndex && cutoff.Value != ""
		})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{av}}, nil)

		store := New(mockClient, testTables)
		tokens, err := store.ListAbandonedTokens(context.Background(), created.Add(2*time.Hour))

		assert.NoError(t, err)
		assert.Equal(t, []models.GiftToken{*pending}, tokens)
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("query failed"))

		store := New(mockClient, testTables)
		_, err := store.ListAbandonedTokens(context.Background(), created)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query for abandoned tokens")
		mockClient.AssertExpectations(t)
	})
}
