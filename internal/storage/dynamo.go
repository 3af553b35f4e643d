package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the backend calls.
// *dynamodb.Client satisfies it; tests substitute an in-memory fake.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoOptions configures the DynamoDB client.
type DynamoOptions struct {
	Region      string
	Endpoint    string // optional, e.g. http://localhost:8000 for DynamoDB Local
	TablePrefix string // e.g. "EduAI-"
	AccessKey   string // optional static credentials
	SecretKey   string
}

// Dynamo is the key-value backend. Each kind maps to its own table keyed by
// the kind's primary key, with one global secondary index per Index.
type Dynamo struct {
	api    DynamoAPI
	prefix string
}

// NewDynamo wraps an existing client.
func NewDynamo(api DynamoAPI, tablePrefix string) *Dynamo {
	return &Dynamo{api: api, prefix: tablePrefix}
}

// OpenDynamo builds a client from the default AWS credential chain, with an
// optional static key pair and endpoint override.
func OpenDynamo(ctx context.Context, opt DynamoOptions) (*Dynamo, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opt.Region),
	}
	if opt.AccessKey != "" && opt.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opt.Endpoint != "" {
			o.BaseEndpoint = aws.String(opt.Endpoint)
		}
	})
	return NewDynamo(client, opt.TablePrefix), nil
}

// Name implements Backend.
func (d *Dynamo) Name() string { return "dynamodb" }

// Close implements Backend. The SDK client holds no resources to release.
func (d *Dynamo) Close() error { return nil }

// Table returns the table name of a kind.
func (d *Dynamo) Table(kind Kind) string { return d.prefix + kind.Name }

// Get implements Backend.
func (d *Dynamo) Get(ctx context.Context, kind Kind, key string, dst any) error {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.Table(kind)),
		Key:            map[string]types.AttributeValue{kind.PK: &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("dynamodb get %s: %w", kind.Name, err)
	}
	if len(out.Item) == 0 {
		return ErrNotFound
	}
	return attributevalue.UnmarshalMap(out.Item, dst)
}

// Query implements Backend. All pages are read; ordering is applied
// client-side so it matches the relational backend.
func (d *Dynamo) Query(ctx context.Context, kind Kind, index string, dst any, values ...string) error {
	ix, ok := kind.Index(index)
	if !ok || len(ix.Fields) != len(values) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownIndex, kind.Name, index)
	}

	names := make(map[string]string, len(ix.Fields))
	vals := make(map[string]types.AttributeValue, len(ix.Fields))
	conds := make([]string, 0, len(ix.Fields))
	for i, f := range ix.Fields {
		n, v := "#k"+strconv.Itoa(i), ":v"+strconv.Itoa(i)
		names[n] = f
		vals[v] = &types.AttributeValueMemberS{Value: values[i]}
		conds = append(conds, n+" = "+v)
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(d.Table(kind)),
		IndexName:                 aws.String(ix.Name),
		KeyConditionExpression:    aws.String(strings.Join(conds, " AND ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: vals,
	}

	var items []map[string]types.AttributeValue
	for {
		out, err := d.api.Query(ctx, in)
		if err != nil {
			return fmt.Errorf("dynamodb query %s.%s: %w", kind.Name, ix.Name, err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}

	sortItems(items, kind.PK)
	return attributevalue.UnmarshalListOfMaps(items, dst)
}

// Put implements Backend.
func (d *Dynamo) Put(ctx context.Context, kind Kind, record any) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind.Name, err)
	}
	if _, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.Table(kind)),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("dynamodb put %s: %w", kind.Name, err)
	}
	return nil
}

// Update implements Backend. The write is conditional on the item existing
// so a missing record surfaces as ErrNotFound instead of an upsert.
func (d *Dynamo) Update(ctx context.Context, kind Kind, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	// Deterministic expression order.
	attrs := make([]string, 0, len(fields))
	for f := range fields {
		attrs = append(attrs, f)
	}
	sort.Strings(attrs)

	names := map[string]string{"#pk": kind.PK}
	vals := make(map[string]types.AttributeValue, len(attrs))
	sets := make([]string, 0, len(attrs))
	for i, f := range attrs {
		av, err := attributevalue.Marshal(fields[f])
		if err != nil {
			return fmt.Errorf("marshal %s.%s: %w", kind.Name, f, err)
		}
		n, v := "#f"+strconv.Itoa(i), ":f"+strconv.Itoa(i)
		names[n] = f
		vals[v] = av
		sets = append(sets, n+" = "+v)
	}

	_, err := d.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.Table(kind)),
		Key:                       map[string]types.AttributeValue{kind.PK: &types.AttributeValueMemberS{Value: key}},
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: vals,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("dynamodb update %s: %w", kind.Name, err)
	}
	return nil
}

// Delete implements Backend.
func (d *Dynamo) Delete(ctx context.Context, kind Kind, key string) error {
	if _, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.Table(kind)),
		Key:       map[string]types.AttributeValue{kind.PK: &types.AttributeValueMemberS{Value: key}},
	}); err != nil {
		return fmt.Errorf("dynamodb delete %s: %w", kind.Name, err)
	}
	return nil
}

// EnsureTables creates any missing table with its secondary indexes, using
// on-demand billing. Tables that already exist are left untouched.
func (d *Dynamo) EnsureTables(ctx context.Context) error {
	for _, kind := range Kinds {
		if err := d.createTable(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dynamo) createTable(ctx context.Context, kind Kind) error {
	seen := map[string]struct{}{kind.PK: {}}
	defs := []types.AttributeDefinition{{AttributeName: aws.String(kind.PK), AttributeType: types.ScalarAttributeTypeS}}

	gsis := make([]types.GlobalSecondaryIndex, 0, len(kind.Indexes))
	for _, ix := range kind.Indexes {
		schema := make([]types.KeySchemaElement, 0, len(ix.Fields))
		for i, f := range ix.Fields {
			kt := types.KeyTypeHash
			if i > 0 {
				kt = types.KeyTypeRange
			}
			schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(f), KeyType: kt})
			if _, ok := seen[f]; !ok {
				seen[f] = struct{}{}
				defs = append(defs, types.AttributeDefinition{AttributeName: aws.String(f), AttributeType: types.ScalarAttributeTypeS})
			}
		}
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName:  aws.String(ix.Name),
			KeySchema:  schema,
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	in := &dynamodb.CreateTableInput{
		TableName:            aws.String(d.Table(kind)),
		AttributeDefinitions: defs,
		KeySchema:            []types.KeySchemaElement{{AttributeName: aws.String(kind.PK), KeyType: types.KeyTypeHash}},
		BillingMode:          types.BillingModePayPerRequest,
	}
	if len(gsis) > 0 {
		in.GlobalSecondaryIndexes = gsis
	}

	_, err := d.api.CreateTable(ctx, in)
	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("create table %s: %w", d.Table(kind), err)
	}
	return nil
}

// sortItems orders raw items by created_at then primary key. Timestamps are
// RFC 3339 strings; parsing keeps the order correct regardless of how many
// fractional digits the encoder emitted.
func sortItems(items []map[string]types.AttributeValue, pk string) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := itemTime(items[i]), itemTime(items[j])
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return itemString(items[i], pk) < itemString(items[j], pk)
	})
}

func itemTime(item map[string]types.AttributeValue) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, itemString(item, "created_at"))
	return t
}

func itemString(item map[string]types.AttributeValue, attr string) string {
	if s, ok := item[attr].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
