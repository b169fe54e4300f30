package persistent

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo understands exactly the condition expressions the repo sends.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func keyOf(m map[string]types.AttributeValue) (string, error) {
	attr, ok := m[dynamoKeyAttribute].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("missing key")
	}

	return attr.Value, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k, err := keyOf(in.Key)
	if err != nil {
		return nil, err
	}

	return &dynamodb.GetItemOutput{Item: f.items[k]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k, err := keyOf(in.Item)
	if err != nil {
		return nil, err
	}

	if _, exists := f.items[k]; exists && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{}
	}

	f.items[k] = in.Item

	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k, err := keyOf(in.Key)
	if err != nil {
		return nil, err
	}

	item, ok := f.items[k]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}

	item["response_payload"] = in.ExpressionAttributeValues[":rp"]
	item["response_status"] = in.ExpressionAttributeValues[":rs"]
	item["response_headers"] = in.ExpressionAttributeValues[":rh"]

	return &dynamodb.UpdateItemOutput{}, nil
}

func TestIdempotencyDynamoRepo_CreateAndGet(t *testing.T) {
	repo := NewIdempotencyDynamoRepo(newFakeDynamo(), "idempotency")
	ctx := context.Background()

	rec := &entity.IdempotencyRecord{
		Key:             "key-1",
		CreatedAt:       time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC),
		RequestHash:     "abc",
		ResponsePayload: []byte(`{"queued":true}`),
		ResponseStatus:  202,
		ResponseHeaders: map[string]string{"Content-Type": "application/json"},
	}
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.Get(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.RequestHash, got.RequestHash)
	assert.Equal(t, rec.ResponsePayload, got.ResponsePayload)
	assert.Equal(t, 202, got.ResponseStatus)
	assert.Equal(t, "application/json", got.ResponseHeaders["Content-Type"])
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
}

func TestIdempotencyDynamoRepo_DuplicateKey(t *testing.T) {
	repo := NewIdempotencyDynamoRepo(newFakeDynamo(), "idempotency")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.IdempotencyRecord{Key: "dup", ResponseStatus: 202}))

	err := repo.Create(ctx, &entity.IdempotencyRecord{Key: "dup", ResponseStatus: 500})
	assert.ErrorIs(t, err, errs.ErrDuplicateKey)
}

func TestIdempotencyDynamoRepo_GetMissing(t *testing.T) {
	repo := NewIdempotencyDynamoRepo(newFakeDynamo(), "idempotency")

	got, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdempotencyDynamoRepo_UpdateResponse(t *testing.T) {
	fake := newFakeDynamo()
	repo := NewIdempotencyDynamoRepo(fake, "idempotency")
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.IdempotencyRecord{Key: "k", RequestHash: "h"}))
	require.NoError(t, repo.UpdateResponse(ctx, &entity.IdempotencyRecord{
		Key:             "k",
		ResponsePayload: []byte("done"),
		ResponseStatus:  202,
	}))

	status, ok := fake.items["k"]["response_status"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, strconv.Itoa(202), status.Value)

	err := repo.UpdateResponse(ctx, &entity.IdempotencyRecord{Key: "missing", ResponseStatus: 202})
	assert.ErrorIs(t, err, errs.ErrRecordNotFound)
}
