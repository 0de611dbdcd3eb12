package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/transit-fare-engine/pkg/models"
)

// ListPasses retrieves a user's passes, most recently activated first.
func (s *Store) ListPasses(ctx context.Context, userID string) ([]models.Pass, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.PassesTableName),
		IndexName:              aws.String(passesUserIndex),
		KeyConditionExpression: aws.String("user_id = :userID"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userID": &types.AttributeValueMemberS{Value: userID},
		},
	}

	items, err := s.queryAll(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query for passes: %w", err)
	}

	var passes []models.Pass
	if err := attributevalue.UnmarshalListOfMaps(items, &passes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal passes: %w", err)
	}
	sort.Slice(passes, func(i, j int) bool {
		return passes[i].ActivatedAt.After(passes[j].ActivatedAt)
	})
	return passes, nil
}

// ExpirePasses marks the user's stale active passes as expired. Each update is
// conditional on the pass still being active, so repeated calls change nothing.
func (s *Store) ExpirePasses(ctx context.Context, userID string, now time.Time) (int, error) {
	passes, err := s.ListPasses(ctx, userID)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range passes {
		if !p.Stale(now) {
			continue
		}
		_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                aws.String(s.PassesTableName),
			Key:                      idKey(p.Id),
			UpdateExpression:         aws.String("SET #status = :expired"),
			ConditionExpression:      aws.String("#status = :active"),
			ExpressionAttributeNames: map[string]string{"#status": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":expired": &types.AttributeValueMemberS{Value: string(models.PassExpired)},
				":active":  &types.AttributeValueMemberS{Value: string(models.PassActive)},
			},
		})
		if err != nil {
			var condCheckFailed *types.ConditionalCheckFailedException
			if errors.As(err, &condCheckFailed) {
				continue
			}
			return expired, fmt.Errorf("failed to expire pass %s: %w", p.Id, err)
		}
		expired++
	}
	return expired, nil
}
