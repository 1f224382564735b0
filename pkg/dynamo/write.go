package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Put writes item, replacing whatever is stored under its key.
func (t *Table) Put(ctx context.Context, item Item) error {
	_, err := t.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.name),
		Item:      item,
	})
	return classify("put item", err)
}

// Delete removes the item stored under key. Deleting a missing item is not
// an error.
func (t *Table) Delete(ctx context.Context, key Key) error {
	_, err := t.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.name),
		Key:       key,
	})
	return classify("delete item", err)
}

// BatchPut writes items in chunks of 25. The first failing chunk stops the
// batch; chunks already written stay written.
func (t *Table) BatchPut(ctx context.Context, items []Item) error {
	requests := make([]dynamotypes.WriteRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, dynamotypes.WriteRequest{
			PutRequest: &dynamotypes.PutRequest{Item: item},
		})
	}
	return t.batchWrite(ctx, requests)
}

// BatchDelete deletes keys in chunks of 25, with the same failure behavior as
// BatchPut.
func (t *Table) BatchDelete(ctx context.Context, keys []Key) error {
	requests := make([]dynamotypes.WriteRequest, 0, len(keys))
	for _, key := range keys {
		requests = append(requests, dynamotypes.WriteRequest{
			DeleteRequest: &dynamotypes.DeleteRequest{Key: key},
		})
	}
	return t.batchWrite(ctx, requests)
}

func (t *Table) batchWrite(ctx context.Context, writeRequests []dynamotypes.WriteRequest) error {
	for i := 0; i < len(writeRequests); i += batchSize {
		end := min(i+batchSize, len(writeRequests))

		chunk := writeRequests[i:end]
		out, err := t.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]dynamotypes.WriteRequest{
				t.name: chunk,
			},
		})
		if err != nil {
			return classify("batch write", err)
		}
		// Unprocessed items are not resubmitted.
		if left := len(out.UnprocessedItems[t.name]); left > 0 {
			return fmt.Errorf("batch write: %w: %d of %d items unprocessed", ErrTransient, left, len(chunk))
		}
	}
	return nil
}

// PutAllIfAbsent writes items in one transaction, each conditional on its
// key being unused. If any key is taken nothing is written and the error
// wraps ErrConditionFailed.
func (t *Table) PutAllIfAbsent(ctx context.Context, items ...Item) error {
	if len(items) == 0 {
		return nil
	}

	cond := expression.AttributeNotExists(expression.Name(t.keyAttr[0]))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	transactItems := make([]dynamotypes.TransactWriteItem, 0, len(items))
	for _, item := range items {
		transactItems = append(transactItems, dynamotypes.TransactWriteItem{
			Put: &dynamotypes.Put{
				TableName:                aws.String(t.name),
				Item:                     item,
				ConditionExpression:      expr.Condition(),
				ExpressionAttributeNames: expr.Names(),
			},
		})
	}

	_, err = t.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: transactItems,
	})
	return classify("transact write", err)
}
