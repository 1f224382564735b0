// Package dynamotest provides an in-memory stand-in for the DynamoDB client
// with failure injection, for unit tests of code built on dynamo.Table.
package dynamotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

type item = map[string]dynamotypes.AttributeValue

type table struct {
	keyAttrs []string
	indexes  map[string]string // index name -> partition attribute
	items    map[string]item
}

type failure struct {
	err   error
	after int
}

// FakeAPI keeps tables in memory. Scans return PageSize items per page so
// pagination paths get exercised. Queries on an unknown index, or on a
// non-key attribute without an index, fail with a ValidationException the
// way DynamoDB does.
type FakeAPI struct {
	mu       sync.Mutex
	tables   map[string]*table
	failures map[string]*failure
	calls    map[string]int

	PageSize int
}

// New returns an empty FakeAPI with a scan page size of 2.
func New() *FakeAPI {
	return &FakeAPI{
		tables:   make(map[string]*table),
		failures: make(map[string]*failure),
		calls:    make(map[string]int),
		PageSize: 2,
	}
}

// CreateTable registers a table and its key schema.
func (f *FakeAPI) CreateTable(name string, keyAttrs ...string) *FakeAPI {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[name] = &table{keyAttrs: keyAttrs, indexes: map[string]string{}, items: map[string]item{}}
	return f
}

// CreateIndex registers a global secondary index partitioned on attr.
func (f *FakeAPI) CreateIndex(tableName, index, attr string) *FakeAPI {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[tableName].indexes[index] = attr
	return f
}

// Seed stores items directly.
func (f *FakeAPI) Seed(tableName string, items ...item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[tableName]
	for _, it := range items {
		t.items[t.keyString(it)] = it
	}
}

// Items returns a snapshot of the table ordered by key.
func (f *FakeAPI) Items(tableName string) []item {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[tableName]
	out := make([]item, 0, len(t.items))
	for _, k := range t.sortedKeys() {
		out = append(out, t.items[k])
	}
	return out
}

// Count returns how many items tableName holds.
func (f *FakeAPI) Count(tableName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[tableName].items)
}

// FailOn makes every call to op (the client method name, e.g. "Scan") fail
// with err.
func (f *FakeAPI) FailOn(op string, err error) {
	f.FailAfter(op, 0, err)
}

// FailAfter lets the first n calls to op succeed and fails the rest with err.
func (f *FakeAPI) FailAfter(op string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = &failure{err: err, after: n}
}

// Calls returns how many times op was invoked.
func (f *FakeAPI) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// ValidationError builds the API error DynamoDB returns for malformed input.
func ValidationError(msg string) error {
	return &smithy.GenericAPIError{Code: "ValidationException", Message: msg, Fault: smithy.FaultClient}
}

// ThrottlingError builds a throughput error.
func ThrottlingError() error {
	return &dynamotypes.ProvisionedThroughputExceededException{Message: stringPtr("rate exceeded")}
}

// enter records a call and returns the injected failure for it, if any.
// Callers hold f.mu.
func (f *FakeAPI) enter(op string) error {
	f.calls[op]++
	if fl, ok := f.failures[op]; ok && f.calls[op] > fl.after {
		return fl.err
	}
	return nil
}

func (f *FakeAPI) table(name *string) (*table, error) {
	if name == nil {
		return nil, ValidationError("table name is required")
	}
	t, ok := f.tables[*name]
	if !ok {
		return nil, &dynamotypes.ResourceNotFoundException{Message: stringPtr("table not found: " + *name)}
	}
	return t, nil
}

func (f *FakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	if err := t.checkKey(in.Key); err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: t.items[t.keyString(in.Key)]}, nil
}

func (f *FakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("PutItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	if err := t.checkKey(in.Item); err != nil {
		return nil, err
	}
	t.items[t.keyString(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *FakeAPI) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteItem"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}
	if err := t.checkKey(in.Key); err != nil {
		return nil, err
	}
	delete(t.items, t.keyString(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query supports a single equality key condition, which is all dynamo.Table
// issues.
func (f *FakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Query"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}

	attr, value, err := equalityCondition(in)
	if err != nil {
		return nil, err
	}

	partition := t.keyAttrs[0]
	if in.IndexName != nil {
		indexAttr, ok := t.indexes[*in.IndexName]
		if !ok {
			return nil, ValidationError("The table does not have the specified index: " + *in.IndexName)
		}
		partition = indexAttr
	}
	if attr != partition {
		return nil, ValidationError("Query condition missed key schema element: " + partition)
	}

	var out []item
	for _, k := range t.sortedKeys() {
		if attributeEqual(t.items[k][attr], value) {
			out = append(out, t.items[k])
		}
	}
	return &dynamodb.QueryOutput{Items: out, Count: int32(len(out))}, nil
}

func (f *FakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Scan"); err != nil {
		return nil, err
	}
	t, err := f.table(in.TableName)
	if err != nil {
		return nil, err
	}

	keys := t.sortedKeys()
	start := 0
	if len(in.ExclusiveStartKey) > 0 {
		after := t.keyString(in.ExclusiveStartKey)
		start = sort.SearchStrings(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}

	end := len(keys)
	if f.PageSize > 0 && start+f.PageSize < end {
		end = start + f.PageSize
	}

	out := &dynamodb.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, t.items[k])
	}
	out.Count = int32(len(out.Items))
	if end < len(keys) {
		last := t.items[keys[end-1]]
		out.LastEvaluatedKey = t.keyOf(last)
	}
	return out, nil
}

func (f *FakeAPI) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("BatchWriteItem"); err != nil {
		return nil, err
	}

	for name, requests := range in.RequestItems {
		if len(requests) > 25 {
			return nil, ValidationError("Too many items requested for the BatchWriteItem call")
		}
		t, err := f.table(&name)
		if err != nil {
			return nil, err
		}
		for _, req := range requests {
			switch {
			case req.PutRequest != nil:
				if err := t.checkKey(req.PutRequest.Item); err != nil {
					return nil, err
				}
				t.items[t.keyString(req.PutRequest.Item)] = req.PutRequest.Item
			case req.DeleteRequest != nil:
				if err := t.checkKey(req.DeleteRequest.Key); err != nil {
					return nil, err
				}
				delete(t.items, t.keyString(req.DeleteRequest.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

// TransactWriteItems supports Put entries with an attribute_not_exists
// condition on the partition key.
func (f *FakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	reasons := make([]dynamotypes.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		reasons[i] = dynamotypes.CancellationReason{Code: stringPtr("None")}
		if ti.Put == nil {
			return nil, ValidationError("only Put is supported")
		}
		t, err := f.table(ti.Put.TableName)
		if err != nil {
			return nil, err
		}
		if err := t.checkKey(ti.Put.Item); err != nil {
			return nil, err
		}
		conditional := ti.Put.ConditionExpression != nil && strings.Contains(*ti.Put.ConditionExpression, "attribute_not_exists")
		if _, exists := t.items[t.keyString(ti.Put.Item)]; exists && conditional {
			reasons[i] = dynamotypes.CancellationReason{Code: stringPtr("ConditionalCheckFailed")}
			failed = true
		}
	}
	if failed {
		return nil, &dynamotypes.TransactionCanceledException{
			Message:             stringPtr("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		t := f.tables[*ti.Put.TableName]
		t.items[t.keyString(ti.Put.Item)] = ti.Put.Item
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (t *table) checkKey(it item) error {
	for _, attr := range t.keyAttrs {
		v, ok := it[attr]
		if !ok {
			return ValidationError("The provided key element does not match the schema")
		}
		if s, ok := v.(*dynamotypes.AttributeValueMemberS); ok && s.Value == "" {
			return ValidationError("One or more parameter values are not valid. The AttributeValue for a key attribute cannot contain an empty string value. Key: " + attr)
		}
	}
	return nil
}

func (t *table) keyOf(it item) item {
	key := make(item, len(t.keyAttrs))
	for _, attr := range t.keyAttrs {
		key[attr] = it[attr]
	}
	return key
}

func (t *table) keyString(it item) string {
	parts := make([]string, 0, len(t.keyAttrs))
	for _, attr := range t.keyAttrs {
		parts = append(parts, scalar(it[attr]))
	}
	return strings.Join(parts, "\x00")
}

func (t *table) sortedKeys() []string {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func equalityCondition(in *dynamodb.QueryInput) (string, dynamotypes.AttributeValue, error) {
	if len(in.ExpressionAttributeNames) != 1 || len(in.ExpressionAttributeValues) != 1 {
		return "", nil, ValidationError("unsupported key condition")
	}
	var attr string
	for _, name := range in.ExpressionAttributeNames {
		attr = name
	}
	var value dynamotypes.AttributeValue
	for _, v := range in.ExpressionAttributeValues {
		value = v
	}
	return attr, value, nil
}

func attributeEqual(a, b dynamotypes.AttributeValue) bool {
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b) && scalar(a) == scalar(b)
}

func scalar(v dynamotypes.AttributeValue) string {
	switch tv := v.(type) {
	case *dynamotypes.AttributeValueMemberS:
		return tv.Value
	case *dynamotypes.AttributeValueMemberN:
		return tv.Value
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", tv)
	}
}

func stringPtr(s string) *string { return &s }
