package assetcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
)

// dynamoBatchSize is the BatchWriteItem limit.
const dynamoBatchSize = 25

// dynamoMaxRetries bounds the retries of throttled batch writes.
const dynamoMaxRetries = 5

// DynamoDBAPI defines the DynamoDB operations used by the store.
type DynamoDBAPI interface {
	// BatchWriteItem writes a batch of items to DynamoDB.
	BatchWriteItem(
		ctx context.Context,
		params *dynamodb.BatchWriteItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.BatchWriteItemOutput, error)

	// Scan reads items from DynamoDB.
	Scan(
		ctx context.Context,
		params *dynamodb.ScanInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.ScanOutput, error)
}

// DynamoStore persists asset mappings in a DynamoDB table keyed by
// source_asset_id. Used by the Lambda deployment, where local disk does not
// survive between invocations.
type DynamoStore struct {
	// client is the DynamoDB API client.
	client DynamoDBAPI

	// tableName is the name of the DynamoDB table.
	tableName string
}

// NewDynamoStore creates a DynamoDB-backed store.
func NewDynamoStore(client DynamoDBAPI, tableName string) (*DynamoStore, error) {
	if client == nil {
		return nil, errors.New("dynamodb client is required")
	}
	if tableName == "" {
		return nil, errors.New("table name is required")
	}

	return &DynamoStore{
		client:    client,
		tableName: tableName,
	}, nil
}

// Load scans the full table into memory.
func (s *DynamoStore) Load(ctx context.Context) (map[string]Mapping, error) {
	entries := make(map[string]Mapping)

	var startKey map[string]types.AttributeValue
	for {
		output, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			ExclusiveStartKey: startKey,
			TableName:         aws.String(s.tableName),
		})
		if err != nil {
			return nil, fmt.Errorf("scanning asset table: %w", err)
		}

		for _, item := range output.Items {
			sourceID, mapping, err := parseMappingItem(item)
			if err != nil {
				return nil, &CorruptError{Err: err, Source: "dynamodb table " + s.tableName}
			}
			entries[sourceID] = mapping
		}

		if output.LastEvaluatedKey == nil {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	return entries, nil
}

// Save writes the dirty entries in BatchWriteItem chunks. Existing entries
// are overwritten in place, which only happens when an upload is being
// corrected.
func (s *DynamoStore) Save(ctx context.Context, _ map[string]Mapping, dirty map[string]Mapping) error {
	writes := make([]types.WriteRequest, 0, len(dirty))
	for sourceID, mapping := range dirty {
		writes = append(writes, types.WriteRequest{
			PutRequest: &types.PutRequest{
				Item: map[string]types.AttributeValue{
					"source_asset_id": &types.AttributeValueMemberS{Value: sourceID},
					"target_asset_id": &types.AttributeValueMemberS{Value: mapping.TargetAssetID},
					"url":             &types.AttributeValueMemberS{Value: mapping.URL},
					"uploaded_at":     &types.AttributeValueMemberS{Value: mapping.UploadedAt.Format(time.RFC3339)},
				},
			},
		})
	}

	for start := 0; start < len(writes); start += dynamoBatchSize {
		end := min(start+dynamoBatchSize, len(writes))

		if err := s.writeBatch(ctx, writes[start:end]); err != nil {
			return err
		}
	}

	return nil
}

// writeBatch writes one chunk, retrying the writes DynamoDB returns as
// unprocessed under throttling. Dropping one would lose an asset mapping and
// the next run would upload the binary again.
func (s *DynamoStore) writeBatch(ctx context.Context, writes []types.WriteRequest) error {
	delay := backoff.NewExponentialBackOff()
	delay.InitialInterval = 200 * time.Millisecond

	pending := writes
	for attempt := 0; ; attempt++ {
		output, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				s.tableName: pending,
			},
		})
		if err != nil {
			return fmt.Errorf("writing asset batch: %w", err)
		}

		pending = output.UnprocessedItems[s.tableName]
		if len(pending) == 0 {
			return nil
		}
		if attempt >= dynamoMaxRetries {
			return fmt.Errorf("%d asset writes unprocessed after %d retries", len(pending), attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay.NextBackOff()):
		}
	}
}

// parseMappingItem converts a DynamoDB item into a Mapping.
func parseMappingItem(item map[string]types.AttributeValue) (string, Mapping, error) {
	var sourceID string
	var mapping Mapping

	v, ok := item["source_asset_id"].(*types.AttributeValueMemberS)
	if !ok || v.Value == "" {
		return "", Mapping{}, errors.New("item missing source_asset_id")
	}
	sourceID = v.Value

	if v, ok := item["target_asset_id"].(*types.AttributeValueMemberS); ok {
		mapping.TargetAssetID = v.Value
	}
	if mapping.TargetAssetID == "" {
		return "", Mapping{}, fmt.Errorf("item %s missing target_asset_id", sourceID)
	}

	if v, ok := item["url"].(*types.AttributeValueMemberS); ok {
		mapping.URL = v.Value
	}

	if v, ok := item["uploaded_at"].(*types.AttributeValueMemberS); ok {
		t, err := time.Parse(time.RFC3339, v.Value)
		if err != nil {
			return "", Mapping{}, fmt.Errorf("parsing uploaded_at for %s: %w", sourceID, err)
		}
		mapping.UploadedAt = t
	}

	return sourceID, mapping, nil
}
