package dynamo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vignesh-goutham/coinledger/pkg/dynamo/dynamotest"
)

type person struct {
	ID    string `dynamodbav:"id"`
	Email string `dynamodbav:"email"`
}

func newPeople(t *testing.T) (*dynamotest.FakeAPI, *Table) {
	t.Helper()
	fake := dynamotest.New().
		CreateTable("people", "id").
		CreateIndex("people", "emailIndex", "email")
	return fake, NewTable(fake, "people", "id")
}

func mustEncode(t *testing.T, v any) Item {
	t.Helper()
	item, err := Encode(v)
	require.NoError(t, err)
	return item
}

func TestTable_GetAndPut(t *testing.T) {
	ctx := context.Background()
	_, table := newPeople(t)

	_, found, err := table.Get(ctx, table.StringKey("p1"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, table.Put(ctx, mustEncode(t, person{ID: "p1", Email: "a@example.com"})))
	require.NoError(t, table.Put(ctx, mustEncode(t, person{ID: "p1", Email: "b@example.com"})))

	item, found, err := table.Get(ctx, table.StringKey("p1"))
	require.NoError(t, err)
	require.True(t, found)

	got, err := Decode[person](item)
	require.NoError(t, err)
	assert.Equal(t, person{ID: "p1", Email: "b@example.com"}, got)
}

func TestTable_DeleteMissingIsNoop(t *testing.T) {
	_, table := newPeople(t)
	assert.NoError(t, table.Delete(context.Background(), table.StringKey("ghost")))
}

func TestTable_QueryIndex(t *testing.T) {
	ctx := context.Background()
	fake, table := newPeople(t)
	fake.Seed("people",
		mustEncode(t, person{ID: "p1", Email: "a@example.com"}),
		mustEncode(t, person{ID: "p2", Email: "b@example.com"}),
		mustEncode(t, person{ID: "p3", Email: "a@example.com"}),
	)

	items, err := table.QueryIndex(ctx, "emailIndex", "email", "a@example.com")
	require.NoError(t, err)
	people, err := DecodeAll[person](items)
	require.NoError(t, err)
	assert.ElementsMatch(t, []person{{"p1", "a@example.com"}, {"p3", "a@example.com"}}, people)
}

func TestTable_QueryWithoutIndexIsValidationError(t *testing.T) {
	_, table := newPeople(t)

	_, err := table.QueryIndex(context.Background(), "", "email", "a@example.com")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.False(t, errors.Is(err, ErrTransient))
}

func TestTable_ScanAllFollowsContinuationTokens(t *testing.T) {
	ctx := context.Background()
	fake, table := newPeople(t)
	for i := 0; i < 7; i++ {
		fake.Seed("people", mustEncode(t, person{ID: fmt.Sprintf("p%d", i)}))
	}

	items, err := table.ScanAll(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 7)
	assert.Equal(t, 4, fake.Calls("Scan"))

	page, err := table.ScanPage(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.NotNil(t, page.LastKey)
}

func TestTable_ScanAllPropagatesTransientErrors(t *testing.T) {
	fake, table := newPeople(t)
	fake.Seed("people", mustEncode(t, person{ID: "p1"}), mustEncode(t, person{ID: "p2"}), mustEncode(t, person{ID: "p3"}))
	fake.FailAfter("Scan", 1, dynamotest.ThrottlingError())

	_, err := table.ScanAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestTable_BatchWritesInChunksOf25(t *testing.T) {
	ctx := context.Background()
	fake, table := newPeople(t)

	var items []Item
	var keys []Key
	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("p%02d", i)
		items = append(items, mustEncode(t, person{ID: id}))
		keys = append(keys, table.StringKey(id))
	}

	require.NoError(t, table.BatchPut(ctx, items))
	assert.Equal(t, 60, fake.Count("people"))
	assert.Equal(t, 3, fake.Calls("BatchWriteItem"))

	require.NoError(t, table.BatchDelete(ctx, keys))
	assert.Equal(t, 0, fake.Count("people"))
	assert.Equal(t, 6, fake.Calls("BatchWriteItem"))
}

func TestTable_BatchFailureKeepsEarlierChunks(t *testing.T) {
	fake, table := newPeople(t)
	fake.FailAfter("BatchWriteItem", 1, dynamotest.ThrottlingError())

	var items []Item
	for i := 0; i < 30; i++ {
		items = append(items, mustEncode(t, person{ID: fmt.Sprintf("p%02d", i)}))
	}

	err := table.BatchPut(context.Background(), items)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, 25, fake.Count("people"))
}

func TestTable_PutAllIfAbsent(t *testing.T) {
	ctx := context.Background()
	fake, table := newPeople(t)

	first := mustEncode(t, person{ID: "p1"})
	guard := mustEncode(t, person{ID: "email#a@example.com"})
	require.NoError(t, table.PutAllIfAbsent(ctx, first, guard))
	assert.Equal(t, 2, fake.Count("people"))

	second := mustEncode(t, person{ID: "p2"})
	err := table.PutAllIfAbsent(ctx, second, guard)
	assert.ErrorIs(t, err, ErrConditionFailed)
	assert.Equal(t, 2, fake.Count("people"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"validation", dynamotest.ValidationError("bad key"), ErrValidation},
		{"throttling", dynamotest.ThrottlingError(), ErrTransient},
		{"condition", &dynamotypes.ConditionalCheckFailedException{}, ErrConditionFailed},
		{"plain", errors.New("connection reset"), ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("op", tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, classify("op", nil))
}

func TestKeyOf(t *testing.T) {
	table := NewTable(nil, "prices", "crypto_id", "timestamp")
	item := Item{
		"crypto_id": &dynamotypes.AttributeValueMemberS{Value: "bitcoin"},
		"timestamp": &dynamotypes.AttributeValueMemberS{Value: "t1"},
		"name":      &dynamotypes.AttributeValueMemberS{Value: "Bitcoin"},
	}

	key, err := table.KeyOf(item)
	require.NoError(t, err)
	assert.Len(t, key, 2)
	assert.Equal(t, "bitcoin", StringAttr(key, "crypto_id"))

	_, err = table.KeyOf(Item{"crypto_id": item["crypto_id"]})
	assert.Error(t, err)
}
