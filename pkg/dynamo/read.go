package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Get fetches the item stored under key. A missing item is (nil, false, nil).
func (t *Table) Get(ctx context.Context, key Key) (Item, bool, error) {
	result, err := t.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.name),
		Key:       key,
	})
	if err != nil {
		return nil, false, classify("get item", err)
	}
	if result.Item == nil {
		return nil, false, nil
	}
	return result.Item, true, nil
}

// QueryIndex returns every item of index whose attr equals value, following
// continuation tokens. DynamoDB answers with ErrValidation when attr is not
// the partition key of index.
func (t *Table) QueryIndex(ctx context.Context, index, attr, value string) ([]Item, error) {
	keyCond := expression.Key(attr).Equal(expression.Value(value))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(t.name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if index != "" {
		input.IndexName = aws.String(index)
	}

	var items []Item
	paginator := dynamodb.NewQueryPaginator(t.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("query", err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// ScanPage reads one scan page starting after startKey (nil for the first).
func (t *Table) ScanPage(ctx context.Context, startKey Key) (Page, error) {
	result, err := t.api.Scan(ctx, &dynamodb.ScanInput{
		TableName:         aws.String(t.name),
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		return Page{}, classify("scan", err)
	}
	return Page{Items: result.Items, LastKey: result.LastEvaluatedKey}, nil
}

// ScanAll reads the whole table, following LastEvaluatedKey until the final
// page.
func (t *Table) ScanAll(ctx context.Context) ([]Item, error) {
	var items []Item
	var startKey Key
	for {
		page, err := t.ScanPage(ctx, startKey)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if len(page.LastKey) == 0 {
			return items, nil
		}
		startKey = page.LastKey
	}
}
