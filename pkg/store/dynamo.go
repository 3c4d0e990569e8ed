package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/grwebhook/grwebhook/pkg/sale"
)

const writeTimeout = 5 * time.Second

type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Writes records to a DynamoDB table keyed on email (hash) and timestamp (range).
type Dynamo struct {
	client PutItemAPI
	table  string
}

// Creates a DynamoDB store using the default AWS credential chain. A non-empty endpoint overrides
// the service endpoint, for DynamoDB Local.
func NewDynamo(ctx context.Context, table string, endpoint string) (*Dynamo, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return NewDynamoWithClient(client, table), nil
}

func NewDynamoWithClient(client PutItemAPI, table string) *Dynamo {
	if table == "" {
		table = DefaultTable
	}
	return &Dynamo{
		client: client,
		table:  table,
	}
}

// Puts the record as a full item. An existing item with the same key is replaced.
func (dynamo *Dynamo) Upsert(ctx context.Context, record *sale.Record) error {
	if err := validate(record); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err = dynamo.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(dynamo.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item in %s: %w", dynamo.table, err)
	}

	return nil
}

func (dynamo *Dynamo) Close() {}
