package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/grwebhook/grwebhook/pkg/sale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *sale.Record {
	return &sale.Record{
		Email:     "buyer@example.com",
		Timestamp: 1599921468,
		Value:     19900,
		OfferCode: sale.DefaultOfferCode,
		Country:   "Canada",
		Refunded:  0,
		Data:      map[string]any{"permalink": "WPLqz", "custom_fields": []string{"a", "b"}},
		GA:        "2.1-845139552.1599939181",
		UpdatedAt: 1599944400,
	}
}

func TestMemoryUpsertIsIdempotent(t *testing.T) {
	memory := NewMemory()
	ctx := context.Background()

	record := testRecord()
	require.NoError(t, memory.Upsert(ctx, record))
	require.NoError(t, memory.Upsert(ctx, record))
	assert.Equal(t, 1, memory.Len())

	updated := testRecord()
	updated.Refunded = 1
	require.NoError(t, memory.Upsert(ctx, updated))
	assert.Equal(t, 1, memory.Len())

	stored, ok := memory.Get(record.Email, record.Timestamp)
	require.True(t, ok)
	assert.Equal(t, 1, stored.Refunded)

	_, ok = memory.Get("other@example.com", record.Timestamp)
	assert.False(t, ok)
}

func TestMemoryRejectsInvalidRecord(t *testing.T) {
	memory := NewMemory()
	err := memory.Upsert(context.Background(), &sale.Record{Timestamp: 1})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Equal(t, 0, memory.Len())
}

type fakeDynamo struct {
	input *dynamodb.PutItemInput
	err   error
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func TestDynamoUpsert(t *testing.T) {
	client := &fakeDynamo{}
	dynamo := NewDynamoWithClient(client, "")

	err := dynamo.Upsert(context.Background(), testRecord())
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, DefaultTable, *client.input.TableName)

	item := client.input.Item
	assert.Equal(t, &types.AttributeValueMemberS{Value: "buyer@example.com"}, item["email"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1599921468"}, item["timestamp"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "19900"}, item["value"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "0"}, item["refunded"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "No Code"}, item["offer_code"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "1599944400"}, item["updatedAt"])
	assert.Contains(t, item, "_ga")

	var decoded sale.Record
	require.NoError(t, attributevalue.UnmarshalMap(item, &decoded))
	assert.Equal(t, "WPLqz", decoded.Data["permalink"])
}

func TestDynamoUpsertError(t *testing.T) {
	client := &fakeDynamo{err: errors.New("throttled")}
	dynamo := NewDynamoWithClient(client, "Sales")

	err := dynamo.Upsert(context.Background(), testRecord())
	assert.ErrorContains(t, err, "Sales")
	assert.ErrorContains(t, err, "throttled")
}

func TestDynamoRejectsInvalidRecord(t *testing.T) {
	client := &fakeDynamo{}
	dynamo := NewDynamoWithClient(client, "")

	err := dynamo.Upsert(context.Background(), &sale.Record{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Nil(t, client.input)
}

func TestPostgresUpsert(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	postgres, err := NewPostgres(ctx, url, "GRWebhookDataTest")
	require.NoError(t, err)
	defer postgres.Close()

	require.NoError(t, postgres.Migrate(ctx))

	record := testRecord()
	require.NoError(t, postgres.Upsert(ctx, record))

	record.Refunded = 1
	require.NoError(t, postgres.Upsert(ctx, record))

	stored, err := postgres.Get(ctx, record.Email, record.Timestamp)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.Refunded)
	assert.Equal(t, "WPLqz", stored.Data["permalink"])

	missing, err := postgres.Get(ctx, "nobody@example.com", 1)
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
