package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chris/transit-fare-engine/pkg/config"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store implements the Storage interface using AWS DynamoDB.
type Store struct {
	Client                        DynamoDBAPI
	AccountsTableName             string
	TransactionsTableName         string
	ScanLogTableName              string
	GiftTokensTableName           string
	PassesTableName               string
	WebsocketConnectionsTableName string
}

// New creates a new Store.
func New(client DynamoDBAPI, tables config.Tables) *Store {
	return &Store{
		Client:                        client,
		AccountsTableName:             tables.Accounts,
		TransactionsTableName:         tables.Transactions,
		ScanLogTableName:              tables.ScanLog,
		GiftTokensTableName:           tables.GiftTokens,
		PassesTableName:               tables.Passes,
		WebsocketConnectionsTableName: tables.Connections,
	}
}

// Make sure we conform to the interfaces
var (
	_ storage.Storage          = (*Store)(nil)
	_ storage.WebSocketManager = (*Store)(nil)
)

const (
	accountsKindIndex      = "kind-index"
	accountsPoolIndex      = "pool_id-index"
	transactionsIndex      = "account_id-created_at_unix-index"
	scansSubjectIndex      = "subject_id-scanned_at_unix-index"
	scansChannelIndex      = "channel-scanned_at_unix-index"
	tokensStatusIndex      = "status-expires_at_unix-index"
	passesUserIndex        = "user_id-index"
	connectionsIndex       = "pk-index"
	conditionCheckFailed   = "ConditionalCheckFailed"
	emailReservationPrefix = "email#"
)
