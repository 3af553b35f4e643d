package storagetest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/tbourn/go-edu-chat-backend/internal/storage"
)

type item = map[string]types.AttributeValue

// FakeDynamo is an in-memory implementation of storage.DynamoAPI. It
// understands the expressions the storage backend emits: equality key
// conditions on "#kN = :vN" pairs and "SET #fN = :fN" updates guarded by
// attribute_exists.
type FakeDynamo struct {
	mu     sync.Mutex
	pks    map[string]string          // table -> primary key attribute
	tables map[string]map[string]item // table -> pk value -> item

	// PageSize, when > 0, splits Query results into pages.
	PageSize int
	// FailOn, when set, is consulted before every call; a non-nil return
	// is surfaced as the call's error.
	FailOn func(op, table string) error
	// Calls counts invocations per operation.
	Calls map[string]int
}

// NewFakeDynamo returns an empty fake with a table per storage kind.
func NewFakeDynamo(prefix string) *FakeDynamo {
	f := &FakeDynamo{
		pks:    make(map[string]string),
		tables: make(map[string]map[string]item),
		Calls:  make(map[string]int),
	}
	for _, k := range storage.Kinds {
		f.pks[prefix+k.Name] = k.PK
	}
	return f
}

// Len reports how many items a table holds.
func (f *FakeDynamo) Len(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func (f *FakeDynamo) begin(op string, table *string) (string, error) {
	name := aws.ToString(table)
	f.Calls[op]++
	if f.FailOn != nil {
		if err := f.FailOn(op, name); err != nil {
			return name, err
		}
	}
	if _, ok := f.pks[name]; !ok {
		return name, &types.ResourceNotFoundException{Message: aws.String("table not found: " + name)}
	}
	if f.tables[name] == nil {
		f.tables[name] = make(map[string]item)
	}
	return name, nil
}

func keyValue(key item) (string, error) {
	if len(key) != 1 {
		return "", errors.New("fake dynamo: expected a single hash key")
	}
	for _, v := range key {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			return s.Value, nil
		}
	}
	return "", errors.New("fake dynamo: key must be a string")
}

func clone(in item) item {
	out := make(item, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// GetItem implements storage.DynamoAPI.
func (f *FakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.begin("GetItem", in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := keyValue(in.Key)
	if err != nil {
		return nil, err
	}
	it, ok := f.tables[table][k]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: clone(it)}, nil
}

// PutItem implements storage.DynamoAPI.
func (f *FakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.begin("PutItem", in.TableName)
	if err != nil {
		return nil, err
	}
	pk, ok := in.Item[f.pks[table]].(*types.AttributeValueMemberS)
	if !ok || pk.Value == "" {
		return nil, errors.New("fake dynamo: item is missing its primary key")
	}
	f.tables[table][pk.Value] = clone(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem implements storage.DynamoAPI.
func (f *FakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.begin("UpdateItem", in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := keyValue(in.Key)
	if err != nil {
		return nil, err
	}
	it, ok := f.tables[table][k]
	if !ok {
		if strings.Contains(aws.ToString(in.ConditionExpression), "attribute_exists") {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
		it = clone(in.Key)
	}
	it = clone(it)
	for name, attr := range in.ExpressionAttributeNames {
		if !strings.HasPrefix(name, "#f") {
			continue
		}
		v, ok := in.ExpressionAttributeValues[":f"+strings.TrimPrefix(name, "#f")]
		if !ok {
			return nil, errors.New("fake dynamo: missing value for " + name)
		}
		it[attr] = v
	}
	f.tables[table][k] = it
	return &dynamodb.UpdateItemOutput{}, nil
}

// DeleteItem implements storage.DynamoAPI.
func (f *FakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.begin("DeleteItem", in.TableName)
	if err != nil {
		return nil, err
	}
	k, err := keyValue(in.Key)
	if err != nil {
		return nil, err
	}
	delete(f.tables[table], k)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query implements storage.DynamoAPI. Matches are returned in primary key
// order; callers must not rely on any particular order.
func (f *FakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	table, err := f.begin("Query", in.TableName)
	if err != nil {
		return nil, err
	}
	if aws.ToString(in.IndexName) == "" {
		return nil, errors.New("fake dynamo: only index queries are supported")
	}

	conds := make(map[string]string)
	for name, attr := range in.ExpressionAttributeNames {
		if !strings.HasPrefix(name, "#k") {
			continue
		}
		v, ok := in.ExpressionAttributeValues[":v"+strings.TrimPrefix(name, "#k")].(*types.AttributeValueMemberS)
		if !ok {
			return nil, errors.New("fake dynamo: missing value for " + name)
		}
		conds[attr] = v.Value
	}

	pkAttr := f.pks[table]
	keys := make([]string, 0)
	for k, it := range f.tables[table] {
		match := true
		for attr, want := range conds {
			got, ok := it[attr].(*types.AttributeValueMemberS)
			if !ok || got.Value != want {
				match = false
				break
			}
		}
		if match {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if start, ok := in.ExclusiveStartKey[pkAttr].(*types.AttributeValueMemberS); ok {
		i := sort.SearchStrings(keys, start.Value)
		if i < len(keys) && keys[i] == start.Value {
			i++
		}
		keys = keys[i:]
	}

	out := &dynamodb.QueryOutput{}
	if f.PageSize > 0 && len(keys) > f.PageSize {
		keys = keys[:f.PageSize]
		out.LastEvaluatedKey = item{pkAttr: &types.AttributeValueMemberS{Value: keys[len(keys)-1]}}
	}
	for _, k := range keys {
		out.Items = append(out.Items, clone(f.tables[table][k]))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

// CreateTable implements storage.DynamoAPI.
func (f *FakeDynamo) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := aws.ToString(in.TableName)
	f.Calls["CreateTable"]++
	if _, ok := f.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists: " + name)}
	}
	if len(in.KeySchema) > 0 {
		f.pks[name] = aws.ToString(in.KeySchema[0].AttributeName)
	}
	f.tables[name] = make(map[string]item)
	return &dynamodb.CreateTableOutput{}, nil
}
