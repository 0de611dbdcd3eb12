package dynamodb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
	"github.com/chris/transit-fare-engine/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func rideBatch() *storage.Batch {
	lock := created.Add(5 * time.Minute)
	return &storage.Batch{
		Accounts: []*storage.AccountWrite{{AccountId: "usr_1", ExpectVersion: 4, Delta: -310, LockedUntil: &lock}},
		Transactions: []models.Transaction{{
			Id: "tx-1", AccountId: "usr_1", Type: models.TxRide, Amount: -310, RelatedId: "scan-1", CreatedAt: created,
		}},
		Scans: []models.ScanLogEntry{{
			Id: "scan-1", SubjectId: "usr_1", Channel: models.ChannelNFC, FareCents: 310, Accepted: true, ScannedAt: created,
		}},
	}
}

func cancelled(codes ...string) *types.TransactionCanceledException {
	tce := &types.TransactionCanceledException{}
	for _, c := range codes {
		tce.CancellationReasons = append(tce.CancellationReasons, types.CancellationReason{Code: aws.String(c)})
	}
	return tce
}

func TestCommit(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			if len(in.TransactItems) != 3 {
				return false
			}
			update := in.TransactItems[0].Update
			return update != nil &&
				*update.ConditionExpression == "attribute_exists(id) AND version = :version AND balance >= :debit" &&
				strings.Contains(*update.UpdateExpression, "balance = balance + :delta") &&
				strings.Contains(*update.UpdateExpression, "locked_until = :lockedUntil") &&
				update.ExpressionAttributeValues[":debit"].(*types.AttributeValueMemberN).Value == "310" &&
				*in.TransactItems[1].Put.TableName == "transactions" &&
				*in.TransactItems[2].Put.TableName == "scan-log"
		})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		store := New(mockClient, testTables)
		err := store.Commit(context.Background(), rideBatch())

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Empty Batch", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)

		store := New(mockClient, testTables)
		err := store.Commit(context.Background(), &storage.Batch{})

		assert.NoError(t, err)
		mockClient.AssertNotCalled(t, "TransactWriteItems", mock.Anything, mock.Anything)
	})

	t.Run("Insufficient Funds", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		tce := cancelled("ConditionalCheckFailed", "None", "None")
		tce.CancellationReasons[0].Item = map[string]types.AttributeValue{
			"id":      &types.AttributeValueMemberS{Value: "usr_1"},
			"version": &types.AttributeValueMemberN{Value: "4"},
			"balance": &types.AttributeValueMemberN{Value: "100"},
		}
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, tce)

		store := New(mockClient, testTables)
		err := store.Commit(context.Background(), rideBatch())

		assert.True(t, errors.Is(err, storage.ErrInsufficientFunds))
		mockClient.AssertExpectations(t)
	})

	t.Run("Version Conflict", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		tce := cancelled("ConditionalCheckFailed", "None", "None")
		tce.CancellationReasons[0].Item = map[string]types.AttributeValue{
			"id":      &types.AttributeValueMemberS{Value: "usr_1"},
			"version": &types.AttributeValueMemberN{Value: "5"},
			"balance": &types.AttributeValueMemberN{Value: "1000"},
		}
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, tce)

		store := New(mockClient, testTables)
		err := store.Commit(context.Background(), rideBatch())

		assert.True(t, errors.Is(err, storage.ErrConflict))
		mockClient.AssertExpectations(t)
	})

	t.Run("Account Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, cancelled("ConditionalCheckFailed", "None", "None"))

		store := New(mockClient, testTables)
		err := store.Commit(context.Background(), rideBatch())

		assert.True(t, errors.Is(err, storage.ErrAccountNotFound))
		mockClient.AssertExpectations(t)
	})

	t.Run("Token Conflict", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		tce := cancelled("ConditionalCheckFailed")
		tce.CancellationReasons[0].Item = map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "GT-1"}}
		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			put := in.TransactItems[0].Put
			return strings.Contains(*put.ConditionExpression, "scan_count = :expectCount") &&
				put.Item["recipient_kind"].(*types.AttributeValueMemberS).Value == "guest_email"
		})).Return(nil, tce)

		batch := &storage.Batch{Tokens: []storage.TokenWrite{{
			Token: models.GiftToken{
				Id:        "GT-1",
				Recipient: models.GuestEmail{Address: "g@example.com"},
				Status:    models.TokenActive,
				ScanCount: 1,
			},
			ExpectStatus: models.TokenPending,
		}}}
		store := New(mockClient, testTables)
		err := store.Commit(context.Background(), batch)

		assert.True(t, errors.Is(err, storage.ErrConflict))
		mockClient.AssertExpectations(t)
	})

	t.Run("Pool Dissolve", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("TransactWriteItems", mock.Anything, mock.MatchedBy(func(in *dynamodb.TransactWriteItemsInput) bool {
			unlink := in.TransactItems[0].Update
			del := in.TransactItems[1].Delete
			return unlink != nil && strings.Contains(*unlink.UpdateExpression, "REMOVE pool_id, pool_role") &&
				del != nil && *del.TableName == "accounts"
		})).Return(&dynamodb.TransactWriteItemsOutput{}, nil)

		batch := &storage.Batch{Accounts: []*storage.AccountWrite{
			{AccountId: "usr_1", ExpectVersion: 2, Pool: &storage.PoolLink{}},
			{AccountId: "pool_1", ExpectVersion: 7, Delete: true},
		}}
		store := New(mockClient, testTables)
		err := store.Commit(context.Background(), batch)

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		mockClient.On("TransactWriteItems", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		store := New(mockClient, testTables)
		err := store.Commit(context.Background(), rideBatch())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to execute transaction")
		mockClient.AssertExpectations(t)
	})
}
