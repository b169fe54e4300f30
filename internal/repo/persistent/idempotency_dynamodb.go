package persistent

import (
	"context"
	"errors"
	"fmt"

	"github.com/andreyxaxa/order-relay/internal/entity"
	"github.com/andreyxaxa/order-relay/pkg/types/errs"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const dynamoKeyAttribute = "idempotency_key"

// DynamoDBAPI is the subset of the DynamoDB client the repo needs.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// IdempotencyDynamoRepo stores records in a table keyed by idempotency_key.
// Uniqueness comes from a conditional put.
type IdempotencyDynamoRepo struct {
	client    DynamoDBAPI
	tableName string
}

func NewIdempotencyDynamoRepo(client DynamoDBAPI, tableName string) *IdempotencyDynamoRepo {
	return &IdempotencyDynamoRepo{client: client, tableName: tableName}
}

func (r *IdempotencyDynamoRepo) Get(ctx context.Context, key string) (*entity.IdempotencyRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            dynamoKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("IdempotencyDynamoRepo - Get - r.client.GetItem: %w", err)
	}

	if len(out.Item) == 0 {
		return nil, nil
	}

	var rec entity.IdempotencyRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("IdempotencyDynamoRepo - Get - attributevalue.UnmarshalMap: %w", err)
	}

	return &rec, nil
}

func (r *IdempotencyDynamoRepo) Create(ctx context.Context, record *entity.IdempotencyRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("IdempotencyDynamoRepo - Create - attributevalue.MarshalMap: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(" + dynamoKeyAttribute + ")"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("IdempotencyDynamoRepo - Create: %w", errs.ErrDuplicateKey)
		}

		return fmt.Errorf("IdempotencyDynamoRepo - Create - r.client.PutItem: %w", err)
	}

	return nil
}

func (r *IdempotencyDynamoRepo) UpdateResponse(ctx context.Context, record *entity.IdempotencyRecord) error {
	payload, err := attributevalue.Marshal(record.ResponsePayload)
	if err != nil {
		return fmt.Errorf("IdempotencyDynamoRepo - UpdateResponse - attributevalue.Marshal: %w", err)
	}

	headers, err := attributevalue.Marshal(record.ResponseHeaders)
	if err != nil {
		return fmt.Errorf("IdempotencyDynamoRepo - UpdateResponse - attributevalue.Marshal: %w", err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 dynamoKey(record.Key),
		ConditionExpression: aws.String("attribute_exists(" + dynamoKeyAttribute + ")"),
		UpdateExpression:    aws.String("SET response_payload = :rp, response_status = :rs, response_headers = :rh"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rp": payload,
			":rs": &types.AttributeValueMemberN{Value: fmt.Sprint(record.ResponseStatus)},
			":rh": headers,
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("IdempotencyDynamoRepo - UpdateResponse: %w", errs.ErrRecordNotFound)
		}

		return fmt.Errorf("IdempotencyDynamoRepo - UpdateResponse - r.client.UpdateItem: %w", err)
	}

	return nil
}

func dynamoKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKeyAttribute: &types.AttributeValueMemberS{Value: key},
	}
}

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}

	var apiErr smithy.APIError

	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}
