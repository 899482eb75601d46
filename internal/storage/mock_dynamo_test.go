package storage

import (
	"context"
	"errors"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoMock is a minimal in-memory GetItem/PutItem implementation keyed by
// the dataset attribute.
type dynamoMock struct {
	mu       sync.Mutex
	table    map[string]map[string]types.AttributeValue
	putCalls int
	getCalls int
	failPut  bool
}

func newDynamoMock() *dynamoMock {
	return &dynamoMock{table: map[string]map[string]types.AttributeValue{}}
}

func (m *dynamoMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	keyAttr, ok := params.Key["dataset"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing dataset key")
	}
	item, ok := m.table[keyAttr.Value]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *dynamoMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.failPut {
		return nil, errors.New("simulated put failure")
	}
	keyAttr, ok := params.Item["dataset"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("missing dataset attribute")
	}
	m.table[keyAttr.Value] = params.Item
	return &dyn.PutItemOutput{}, nil
}
