package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/transit-fare-engine/pkg/models"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

// emailReservation claims an e-mail address in the accounts table so that two
// accounts can never share one.
type emailReservation struct {
	Id        string `dynamodbav:"id"`
	AccountId string `dynamodbav:"account_id"`
}

func emailKey(email string) string {
	return emailReservationPrefix + strings.ToLower(strings.TrimSpace(email))
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

// CreateAccount stores a new account and reserves its e-mail address in one transaction.
func (s *Store) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	accountAV, err := attributevalue.MarshalMap(account)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account: %w", err)
	}

	items := []types.TransactWriteItem{{
		Put: &types.Put{
			TableName:           aws.String(s.AccountsTableName),
			Item:                accountAV,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	}}
	if account.Email != "" {
		reservationAV, err := attributevalue.MarshalMap(emailReservation{Id: emailKey(account.Email), AccountId: account.Id})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal email reservation: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(s.AccountsTableName),
				Item:                reservationAV,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		})
	}

	_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) && anyConditionFailed(tce) {
			return nil, fmt.Errorf("account %s or email %s: %w", account.Id, account.Email, storage.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create account in DynamoDB: %w", err)
	}
	return account, nil
}

// GetAccount retrieves an account by its ID.
func (s *Store) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.AccountsTableName),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account from DynamoDB: %w", err)
	}
	if result.Item == nil || strings.HasPrefix(id, emailReservationPrefix) {
		return nil, fmt.Errorf("account %s: %w", id, storage.ErrAccountNotFound)
	}

	var account models.Account
	if err := attributevalue.UnmarshalMap(result.Item, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// FindAccountByEmail resolves the e-mail reservation and loads the account it points to.
func (s *Store) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.AccountsTableName),
		Key:            idKey(emailKey(email)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get email reservation from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("account with email %s: %w", email, storage.ErrAccountNotFound)
	}

	var reservation emailReservation
	if err := attributevalue.UnmarshalMap(result.Item, &reservation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal email reservation: %w", err)
	}
	return s.GetAccount(ctx, reservation.AccountId)
}

// ListPoolMembers retrieves the users linked to a pool, ordered by creation time.
func (s *Store) ListPoolMembers(ctx context.Context, poolID string) ([]models.Account, error) {
	accounts, err := s.queryAccounts(ctx, accountsPoolIndex, "pool_id", poolID)
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

// ListAccounts retrieves every account of a kind, ordered by ID.
func (s *Store) ListAccounts(ctx context.Context, kind models.AccountKind) ([]models.Account, error) {
	accounts, err := s.queryAccounts(ctx, accountsKindIndex, "kind", string(kind))
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Id < accounts[j].Id })
	return accounts, nil
}

func (s *Store) queryAccounts(ctx context.Context, index, attr, value string) ([]models.Account, error) {
	input := &dynamodb.QueryInput{
		TableName:                aws.String(s.AccountsTableName),
		IndexName:                aws.String(index),
		KeyConditionExpression:   aws.String("#k = :v"),
		ExpressionAttributeNames: map[string]string{"#k": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
	}

	items, err := s.queryAll(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts by %s: %w", attr, err)
	}

	var accounts []models.Account
	if err := attributevalue.UnmarshalListOfMaps(items, &accounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal accounts: %w", err)
	}
	return accounts, nil
}

// queryAll follows LastEvaluatedKey until the query is exhausted.
func (s *Store) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	for {
		result, err := s.Client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		items = append(items, result.Items...)
		if len(result.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}
