package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/transit-fare-engine/pkg/models"
)

// transactionItem adds a numeric sort key so the per-account index orders by time.
type transactionItem struct {
	models.Transaction
	CreatedAtUnix int64 `dynamodbav:"created_at_unix"`
}

func newTransactionItem(tx models.Transaction) transactionItem {
	return transactionItem{Transaction: tx, CreatedAtUnix: tx.CreatedAt.UnixNano()}
}

// scanItem adds a numeric sort key for time-window queries on the scan log.
type scanItem struct {
	models.ScanLogEntry
	ScannedAtUnix int64 `dynamodbav:"scanned_at_unix"`
}

func newScanItem(scan models.ScanLogEntry) scanItem {
	return scanItem{ScanLogEntry: scan, ScannedAtUnix: scan.ScannedAt.UnixNano()}
}

func nanos(t time.Time) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", t.UnixNano())}
}

// ListTransactions retrieves the newest transactions for an account.
func (s *Store) ListTransactions(ctx context.Context, accountID string, limit int32) ([]models.Transaction, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.TransactionsTableName),
		IndexName:              aws.String(transactionsIndex),
		KeyConditionExpression: aws.String("account_id = :accountID"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":accountID": &types.AttributeValueMemberS{Value: accountID},
		},
		ScanIndexForward: aws.Bool(false), // Newest first
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for transactions: %w", err)
	}

	var items []transactionItem
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transactions: %w", err)
	}
	txs := make([]models.Transaction, len(items))
	for i, item := range items {
		txs[i] = item.Transaction
	}
	return txs, nil
}

// HasAcceptedGuestScanSince reports whether another subject had an accepted guest scan after since.
func (s *Store) HasAcceptedGuestScanSince(ctx context.Context, since time.Time, excludeID string) (bool, error) {
	input := &dynamodb.QueryInput{
		TableName:                aws.String(s.ScanLogTableName),
		IndexName:                aws.String(scansChannelIndex),
		KeyConditionExpression:   aws.String("#channel = :channel AND scanned_at_unix > :since"),
		FilterExpression:         aws.String("accepted = :accepted AND subject_id <> :exclude"),
		ExpressionAttributeNames: map[string]string{"#channel": "channel"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":channel":  &types.AttributeValueMemberS{Value: string(models.ChannelGuestQR)},
			":since":    nanos(since),
			":accepted": &types.AttributeValueMemberBOOL{Value: true},
			":exclude":  &types.AttributeValueMemberS{Value: excludeID},
		},
	}

	items, err := s.queryAll(ctx, input)
	if err != nil {
		return false, fmt.Errorf("failed to query for recent guest scans: %w", err)
	}
	return len(items) > 0, nil
}

// ListScans retrieves the scan log entries for a subject, oldest first.
func (s *Store) ListScans(ctx context.Context, subjectID string) ([]models.ScanLogEntry, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.ScanLogTableName),
		IndexName:              aws.String(scansSubjectIndex),
		KeyConditionExpression: aws.String("subject_id = :subjectID"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":subjectID": &types.AttributeValueMemberS{Value: subjectID},
		},
	}

	raw, err := s.queryAll(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for scans: %w", err)
	}

	var items []scanItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scans: %w", err)
	}
	scans := make([]models.ScanLogEntry, len(items))
	for i, item := range items {
		scans[i] = item.ScanLogEntry
	}
	return scans, nil
}
