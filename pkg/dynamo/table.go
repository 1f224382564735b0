package dynamo

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is one raw DynamoDB item.
type Item = map[string]dynamotypes.AttributeValue

// Key holds the primary key attributes of an item.
type Key = map[string]dynamotypes.AttributeValue

// Page is one page of a scan. LastKey is nil on the final page.
type Page struct {
	Items   []Item
	LastKey Key
}

// batchSize is the BatchWriteItem request limit.
const batchSize = 25

// Table is a thin adapter over one DynamoDB table.
type Table struct {
	api     API
	name    string
	keyAttr []string
}

// NewTable binds api to the table name whose primary key is made of keyAttrs
// (partition key first).
func NewTable(api API, name string, keyAttrs ...string) *Table {
	return &Table{api: api, name: name, keyAttr: keyAttrs}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// KeyOf extracts the primary key of item.
func (t *Table) KeyOf(item Item) (Key, error) {
	key := make(Key, len(t.keyAttr))
	for _, attr := range t.keyAttr {
		v, ok := item[attr]
		if !ok {
			return nil, fmt.Errorf("item in %s has no key attribute %q", t.name, attr)
		}
		key[attr] = v
	}
	return key, nil
}

// StringKey builds a key from string values given in key schema order.
func (t *Table) StringKey(values ...string) Key {
	key := make(Key, len(values))
	for i, v := range values {
		if i >= len(t.keyAttr) {
			break
		}
		key[t.keyAttr[i]] = &dynamotypes.AttributeValueMemberS{Value: v}
	}
	return key
}

// Encode marshals v into an item.
func Encode(v any) (Item, error) {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("error marshaling item: %w", err)
	}
	return item, nil
}

// Decode unmarshals one item into a T.
func Decode[T any](item Item) (T, error) {
	var out T
	if err := attributevalue.UnmarshalMap(item, &out); err != nil {
		return out, fmt.Errorf("error unmarshaling item: %w", err)
	}
	return out, nil
}

// DecodeAll unmarshals items into a []T.
func DecodeAll[T any](items []Item) ([]T, error) {
	out := make([]T, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("error unmarshaling items: %w", err)
	}
	return out, nil
}

// StringAttr returns the string value of attr, or "" if it is missing or not
// a string.
func StringAttr(item Item, attr string) string {
	if v, ok := item[attr].(*dynamotypes.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
