package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/transit-fare-engine/pkg/storage"
)

// maxTransactItems is the DynamoDB limit on items in one TransactWriteItems call.
const maxTransactItems = 100

type writeKind int

const (
	writeInsert writeKind = iota
	writeAccount
	writeToken
)

// pendingWrite remembers what each transact item was so a cancellation
// reason can be mapped back to a storage error.
type pendingWrite struct {
	kind          writeKind
	id            string
	expectVersion int64
}

func number(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

// Commit writes the whole batch with a single TransactWriteItems call.
func (s *Store) Commit(ctx context.Context, b *storage.Batch) error {
	var (
		items  []types.TransactWriteItem
		writes []pendingWrite
	)
	insert := func(table, id string, v interface{}) error {
		av, err := attributevalue.MarshalMap(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", id, err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(table),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			},
		})
		writes = append(writes, pendingWrite{kind: writeInsert, id: id})
		return nil
	}

	for _, a := range b.NewAccounts {
		if err := insert(s.AccountsTableName, a.Id, a); err != nil {
			return err
		}
	}
	for _, w := range b.Accounts {
		item, err := s.accountWriteItem(w)
		if err != nil {
			return err
		}
		items = append(items, item)
		writes = append(writes, pendingWrite{kind: writeAccount, id: w.AccountId, expectVersion: w.ExpectVersion})
	}
	for _, tx := range b.Transactions {
		if err := insert(s.TransactionsTableName, tx.Id, newTransactionItem(tx)); err != nil {
			return err
		}
	}
	for _, scan := range b.Scans {
		if err := insert(s.ScanLogTableName, scan.Id, newScanItem(scan)); err != nil {
			return err
		}
	}
	for _, tw := range b.Tokens {
		item := toGiftTokenItem(&tw.Token)
		if tw.Create {
			if err := insert(s.GiftTokensTableName, item.Id, item); err != nil {
				return err
			}
			continue
		}
		put, err := s.tokenReplaceItem(item, tw)
		if err != nil {
			return err
		}
		items = append(items, put)
		writes = append(writes, pendingWrite{kind: writeToken, id: item.Id})
	}
	for _, p := range b.Passes {
		if err := insert(s.PassesTableName, p.Id, p); err != nil {
			return err
		}
	}

	if len(items) == 0 {
		return nil
	}
	if len(items) > maxTransactItems {
		return fmt.Errorf("batch of %d writes exceeds the transaction limit of %d", len(items), maxTransactItems)
	}

	_, err := s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if mapped := cancellationError(tce, writes); mapped != nil {
				return mapped
			}
		}
		return fmt.Errorf("failed to execute transaction: %w", err)
	}
	return nil
}

func (s *Store) accountWriteItem(w *storage.AccountWrite) (types.TransactWriteItem, error) {
	values := map[string]types.AttributeValue{
		":version": number(w.ExpectVersion),
	}
	condition := "attribute_exists(id) AND version = :version"
	if w.Delta < 0 {
		values[":debit"] = number(-w.Delta)
		condition += " AND balance >= :debit"
	}

	if w.Delete {
		return types.TransactWriteItem{
			Delete: &types.Delete{
				TableName:                           aws.String(s.AccountsTableName),
				Key:                                 idKey(w.AccountId),
				ConditionExpression:                 aws.String(condition),
				ExpressionAttributeValues:           values,
				ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
			},
		}, nil
	}

	set := []string{"version = version + :one"}
	var remove []string
	names := map[string]string{}
	values[":one"] = number(1)

	if w.Delta != 0 {
		set = append(set, "balance = balance + :delta")
		values[":delta"] = number(w.Delta)
	}
	if w.FraudFlagsInc != 0 {
		set = append(set, "fraud_flags = fraud_flags + :fraud")
		values[":fraud"] = number(int64(w.FraudFlagsInc))
	}
	if w.LockedUntil != nil {
		av, err := attributevalue.Marshal(*w.LockedUntil)
		if err != nil {
			return types.TransactWriteItem{}, fmt.Errorf("failed to marshal lock time: %w", err)
		}
		set = append(set, "locked_until = :lockedUntil")
		values[":lockedUntil"] = av
	}
	if w.Pool != nil {
		if w.Pool.PoolId == "" {
			remove = append(remove, "pool_id", "pool_role")
		} else {
			set = append(set, "pool_id = :poolID", "pool_role = :poolRole")
			values[":poolID"] = &types.AttributeValueMemberS{Value: w.Pool.PoolId}
			values[":poolRole"] = &types.AttributeValueMemberS{Value: string(w.Pool.Role)}
		}
	}
	if w.Name != nil {
		set = append(set, "#name = :name")
		names["#name"] = "name"
		values[":name"] = &types.AttributeValueMemberS{Value: *w.Name}
	}

	expr := "SET " + strings.Join(set, ", ")
	if len(remove) > 0 {
		expr += " REMOVE " + strings.Join(remove, ", ")
	}
	update := &types.Update{
		TableName:                           aws.String(s.AccountsTableName),
		Key:                                 idKey(w.AccountId),
		UpdateExpression:                    aws.String(expr),
		ConditionExpression:                 aws.String(condition),
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	}
	if len(names) > 0 {
		update.ExpressionAttributeNames = names
	}
	return types.TransactWriteItem{Update: update}, nil
}

func (s *Store) tokenReplaceItem(item giftTokenItem, tw storage.TokenWrite) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to marshal gift token: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:                aws.String(s.GiftTokensTableName),
			Item:                     av,
			ConditionExpression:      aws.String("attribute_exists(id) AND #status = :expectStatus AND scan_count = :expectCount"),
			ExpressionAttributeNames: map[string]string{"#status": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":expectStatus": &types.AttributeValueMemberS{Value: string(tw.ExpectStatus)},
				":expectCount":  number(int64(tw.ExpectScanCount)),
			},
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		},
	}, nil
}

// cancellationError maps the first failed condition to a storage error, or
// returns nil when the cancellation was not caused by a condition.
func cancellationError(tce *types.TransactionCanceledException, writes []pendingWrite) error {
	for i, reason := range tce.CancellationReasons {
		if reason.Code == nil || *reason.Code != conditionCheckFailed || i >= len(writes) {
			continue
		}
		w := writes[i]
		switch w.kind {
		case writeInsert:
			return fmt.Errorf("%s: %w", w.id, storage.ErrAlreadyExists)
		case writeAccount:
			if reason.Item == nil {
				return fmt.Errorf("account %s: %w", w.id, storage.ErrAccountNotFound)
			}
			var current struct {
				Version int64 `dynamodbav:"version"`
			}
			if err := attributevalue.UnmarshalMap(reason.Item, &current); err == nil && current.Version != w.expectVersion {
				return fmt.Errorf("account %s: %w", w.id, storage.ErrConflict)
			}
			return fmt.Errorf("account %s: %w", w.id, storage.ErrInsufficientFunds)
		case writeToken:
			if reason.Item == nil {
				return fmt.Errorf("gift token %s: %w", w.id, storage.ErrTokenNotFound)
			}
			return fmt.Errorf("gift token %s: %w", w.id, storage.ErrConflict)
		}
	}
	return nil
}

func anyConditionFailed(tce *types.TransactionCanceledException) bool {
	for _, reason := range tce.CancellationReasons {
		if reason.Code != nil && *reason.Code == conditionCheckFailed {
			return true
		}
	}
	return false
}
