package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamoAPI is the subset of the DynamoDB client the backend uses.
type dynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoConfig selects the table. Endpoint overrides the service URL for
// local emulators.
type DynamoConfig struct {
	Table    string
	Region   string
	Endpoint string
}

// dynamoItem is one table row. PhoneNumber is the partition key.
type dynamoItem struct {
	PhoneNumber string `dynamodbav:"PhoneNumber"`
	State       string `dynamodbav:"State"`
	UpdatedAt   int64  `dynamodbav:"UpdatedAt"`
}

type dynamoBackend struct {
	api   dynamoAPI
	table string
}

// NewDynamo builds a store on a DynamoDB table using the default AWS
// credential chain.
func NewDynamo(ctx context.Context, cfg DynamoConfig) (Store, error) {
	if cfg.Table == "" {
		return nil, errors.New("dynamodb table not set")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newDynamoStore(client, cfg.Table), nil
}

func newDynamoStore(api dynamoAPI, table string) Store {
	return newStore(&dynamoBackend{api: api, table: table})
}

func (b *dynamoBackend) name() string { return BackendDynamoDB }

func (b *dynamoBackend) key(k string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"PhoneNumber": &types.AttributeValueMemberS{Value: k}}
}

func (b *dynamoBackend) load(ctx context.Context, key string) ([]byte, error) {
	out, err := b.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.table),
		Key:            b.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCheckpoint, err)
	}
	return []byte(item.State), nil
}

func (b *dynamoBackend) save(ctx context.Context, key string, data []byte, updated int64) error {
	av, err := attributevalue.MarshalMap(dynamoItem{PhoneNumber: key, State: string(data), UpdatedAt: updated})
	if err != nil {
		return fmt.Errorf("dynamodb marshal: %w", err)
	}
	if _, err := b.api.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(b.table), Item: av}); err != nil {
		return fmt.Errorf("dynamodb set: %w", err)
	}
	return nil
}

func (b *dynamoBackend) remove(ctx context.Context, key string) error {
	if _, err := b.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(b.table), Key: b.key(key)}); err != nil {
		return fmt.Errorf("dynamodb delete: %w", err)
	}
	return nil
}

// keys scans the whole table. The table holds one row per caller, so this
// is acceptable for the admin listing it serves.
func (b *dynamoBackend) keys(ctx context.Context, limit int) ([]string, error) {
	p := dynamodb.NewScanPaginator(b.api, &dynamodb.ScanInput{
		TableName:                aws.String(b.table),
		ProjectionExpression:     aws.String("#k, #u"),
		ExpressionAttributeNames: map[string]string{"#k": "PhoneNumber", "#u": "UpdatedAt"},
		ConsistentRead:           aws.Bool(true),
	})

	var items []dynamoItem
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamodb list: %w", err)
		}
		var batch []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("dynamodb list: %w", err)
		}
		items = append(items, batch...)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].UpdatedAt != items[j].UpdatedAt {
			return items[i].UpdatedAt > items[j].UpdatedAt
		}
		return items[i].PhoneNumber < items[j].PhoneNumber
	})
	if len(items) > limit {
		items = items[:limit]
	}
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.PhoneNumber
	}
	return out, nil
}

func (b *dynamoBackend) ping(ctx context.Context) error {
	out, err := b.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(b.table)})
	if err != nil {
		return fmt.Errorf("dynamodb describe: %w", err)
	}
	if out.Table == nil || out.Table.TableStatus != types.TableStatusActive {
		return errors.New("dynamodb table not active")
	}
	return nil
}

func (b *dynamoBackend) close() error { return nil }
