package storage

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestDynamoBackend_SaveThenLoad(t *testing.T) {
	mock := newDynamoMock()
	b := NewDynamoBackend(mock, "storeping-state")
	ctx := context.Background()

	in := map[string]int64{"cart-1": 1234}
	if err := b.Save(ctx, "debounce-checkouts", in); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	out := map[string]int64{}
	if err := b.Load(ctx, "debounce-checkouts", &out); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if out["cart-1"] != 1234 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if mock.putCalls != 1 || mock.getCalls != 1 {
		t.Fatalf("unexpected call counts: put=%d get=%d", mock.putCalls, mock.getCalls)
	}
}

func TestDynamoBackend_MissingItemLoadsEmpty(t *testing.T) {
	b := NewDynamoBackend(newDynamoMock(), "storeping-state")

	out := map[string]int64{}
	if err := b.Load(context.Background(), "never-saved", &out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty value, got %+v", out)
	}
}

func TestDynamoBackend_CorruptBodyLoadsEmpty(t *testing.T) {
	mock := newDynamoMock()
	mock.table["bad"] = map[string]types.AttributeValue{
		"dataset": &types.AttributeValueMemberS{Value: "bad"},
		"body":    &types.AttributeValueMemberS{Value: "{not json"},
	}
	b := NewDynamoBackend(mock, "storeping-state")

	out := map[string]int64{}
	if err := b.Load(context.Background(), "bad", &out); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty value, got %+v", out)
	}
}

func TestDynamoBackend_PutFailureSurfacesFromSave(t *testing.T) {
	mock := newDynamoMock()
	mock.failPut = true
	b := NewDynamoBackend(mock, "storeping-state")

	if err := b.Save(context.Background(), "ds", map[string]int64{}); err == nil {
		t.Fatal("expected error from failed put")
	}
}

func TestNewBackend_Selection(t *testing.T) {
	ctx := context.Background()

	b, err := NewBackend(ctx, Options{Kind: BackendFile, Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	if _, ok := b.(*FileBackend); !ok {
		t.Fatalf("expected *FileBackend, got %T", b)
	}

	if _, err := NewBackend(ctx, Options{Kind: BackendFile}); err == nil {
		t.Fatal("expected error for file backend without dir")
	}
	if _, err := NewBackend(ctx, Options{Kind: BackendDynamo}); err == nil {
		t.Fatal("expected error for dynamo backend without table")
	}
	if _, err := NewBackend(ctx, Options{Kind: "redis"}); err == nil {
		t.Fatal("expected error for unknown backend kind")
	}
}
