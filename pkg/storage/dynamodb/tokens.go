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
	"github.com/chris/transit-fare-engine/pkg/storage"
)

// giftTokenItem is the stored form of a gift token. The recipient variant is
// flattened into a kind and a value.
type giftTokenItem struct {
	Id             string               `dynamodbav:"id"`
	SenderId       string               `dynamodbav:"sender_id"`
	RecipientKind  models.RecipientKind `dynamodbav:"recipient_kind"`
	RecipientValue string               `dynamodbav:"recipient_value"`
	FareCents      int64                `dynamodbav:"fare_cents"`
	Status         models.TokenStatus   `dynamodbav:"status"`
	CreatedAt      time.Time            `dynamodbav:"created_at"`
	ExpiresAt      time.Time            `dynamodbav:"expires_at"`
	ExpiresAtUnix  int64                `dynamodbav:"expires_at_unix"`
	FirstScannedAt *time.Time           `dynamodbav:"first_scanned_at,omitempty"`
	LastScannedAt  *time.Time           `dynamodbav:"last_scanned_at,omitempty"`
	ScanCount      int                  `dynamodbav:"scan_count"`
}

func toGiftTokenItem(t *models.GiftToken) giftTokenItem {
	item := giftTokenItem{
		Id:             t.Id,
		SenderId:       t.SenderId,
		FareCents:      t.FareCents,
		Status:         t.Status,
		CreatedAt:      t.CreatedAt,
		ExpiresAt:      t.ExpiresAt,
		ExpiresAtUnix:  t.ExpiresAt.UnixNano(),
		FirstScannedAt: t.FirstScannedAt,
		LastScannedAt:  t.LastScannedAt,
		ScanCount:      t.ScanCount,
	}
	if t.Recipient != nil {
		item.RecipientKind = t.Recipient.Kind()
		item.RecipientValue = t.Recipient.Label()
	}
	return item
}

func (i giftTokenItem) toModel() (*models.GiftToken, error) {
	var recipient models.Recipient
	switch i.RecipientKind {
	case models.RecipientUser:
		recipient = models.UserRecipient{AccountId: i.RecipientValue}
	case models.RecipientGuestEmail:
		recipient = models.GuestEmail{Address: i.RecipientValue}
	case models.RecipientGuestPhone:
		recipient = models.GuestPhone{Number: i.RecipientValue}
	default:
		return nil, fmt.Errorf("gift token %s has unknown recipient kind %q", i.Id, i.RecipientKind)
	}
	return &models.GiftToken{
		Id:             i.Id,
		SenderId:       i.SenderId,
		Recipient:      recipient,
		FareCents:      i.FareCents,
		Status:         i.Status,
		CreatedAt:      i.CreatedAt,
		ExpiresAt:      i.ExpiresAt,
		FirstScannedAt: i.FirstScannedAt,
		LastScannedAt:  i.LastScannedAt,
		ScanCount:      i.ScanCount,
	}, nil
}

// GetGiftToken retrieves a gift token by its ID.
func (s *Store) GetGiftToken(ctx context.Context, id string) (*models.GiftToken, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.GiftTokensTableName),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get gift token from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, fmt.Errorf("gift token %s: %w", id, storage.ErrTokenNotFound)
	}

	var item giftTokenItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gift token: %w", err)
	}
	return item.toModel()
}

// ListAbandonedTokens retrieves pending tokens whose outer expiry is before cutoff.
func (s *Store) ListAbandonedTokens(ctx context.Context, cutoff time.Time) ([]models.GiftToken, error) {
	input := &dynamodb.QueryInput{
		TableName:                aws.String(s.GiftTokensTableName),
		IndexName:                aws.String(tokensStatusIndex),
		KeyConditionExpression:   aws.String("#status = :status AND expires_at_unix < :cutoff"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(models.TokenPending)},
			":cutoff": nanos(cutoff),
		},
	}

	raw, err := s.queryAll(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for abandoned tokens: %w", err)
	}

	var items []giftTokenItem
	if err := attributevalue.UnmarshalListOfMaps(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal gift tokens: %w", err)
	}
	tokens := make([]models.GiftToken, 0, len(items))
	for _, item := range items {
		tok, err := item.toModel()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, *tok)
	}
	return tokens, nil
}
