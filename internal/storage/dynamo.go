package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoBackend.
// Defined here so tests can inject an in-memory implementation.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error)
	PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error)
}

// datasetItem is the shape persisted in the datasets table: one item per
// dataset, body holding the whole JSON document.
type datasetItem struct {
	Dataset   string `dynamodbav:"dataset"` // PK
	Body      string `dynamodbav:"body"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// DynamoBackend stores each dataset as a single table item, whole-value
// overwrite on every Save. The single-writer assumption of the deployment
// holds regardless of the storage medium; no conditional writes are needed.
type DynamoBackend struct {
	client    DynamoAPI
	tableName string
	nowFunc   func() time.Time
}

// NewDynamoBackend returns a backend bound to the given table.
func NewDynamoBackend(client DynamoAPI, tableName string) *DynamoBackend {
	return &DynamoBackend{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

func (b *DynamoBackend) Load(ctx context.Context, dataset string, v interface{}) error {
	out, err := b.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &b.tableName,
		Key: map[string]types.AttributeValue{
			"dataset": &types.AttributeValueMemberS{Value: dataset},
		},
	})
	if err != nil {
		log.Printf("[storage] dynamo get %s: %v (treating as empty)", dataset, err)
		return nil
	}
	if len(out.Item) == 0 {
		return nil
	}
	var item datasetItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		log.Printf("[storage] dynamo decode %s: %v (treating as empty)", dataset, err)
		return nil
	}
	if err := json.Unmarshal([]byte(item.Body), v); err != nil {
		log.Printf("[storage] dynamo body decode %s: %v (treating as empty)", dataset, err)
		return nil
	}
	return nil
}

func (b *DynamoBackend) Save(ctx context.Context, dataset string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", dataset, err)
	}
	item, err := attributevalue.MarshalMap(datasetItem{
		Dataset:   dataset,
		Body:      string(body),
		UpdatedAt: b.nowFunc().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal item %s: %w", dataset, err)
	}
	_, err = b.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &b.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item %s: %w", dataset, err)
	}
	return nil
}
