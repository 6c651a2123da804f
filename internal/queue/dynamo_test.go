package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo keeps items in insertion order and pages Scan results the way
// DynamoDB does: at most Limit items, LastEvaluatedKey while more remain.
type fakeDynamo struct {
	items    []map[string]types.AttributeValue
	scans    int
	scanErr  error
	deleted  []string
	putTable string
}

func keyOf(item map[string]types.AttributeValue) string {
	if s, ok := item["QueueId"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scans++
	if f.scanErr != nil {
		return nil, f.scanErr
	}

	start := 0
	if in.ExclusiveStartKey != nil {
		after := keyOf(in.ExclusiveStartKey)
		for i, it := range f.items {
			if keyOf(it) == after {
				start = i + 1
				break
			}
		}
	}

	end := len(f.items)
	if in.Limit != nil && start+int(*in.Limit) < end {
		end = start + int(*in.Limit)
	}

	out := &dynamodb.ScanOutput{Items: f.items[start:end]}
	if end < len(f.items) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"QueueId": &types.AttributeValueMemberS{Value: keyOf(f.items[end-1])},
		}
	}
	return out, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putTable = aws.ToString(in.TableName)
	for _, it := range f.items {
		if keyOf(it) == keyOf(in.Item) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	}
	f.items = append(f.items, in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	id := keyOf(in.Key)
	for i, it := range f.items {
		if keyOf(it) == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			f.deleted = append(f.deleted, id)
			return &dynamodb.DeleteItemOutput{}, nil
		}
	}
	return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
}

func seed(t *testing.T, f *fakeDynamo, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		item, err := attributevalue.MarshalMap(Record{
			QueueID:    string(rune('a'+i%26)) + string(rune('0'+i/26)),
			ExternalID: "ext",
			EnqueuedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		f.items = append(f.items, item)
	}
}

func TestDynamoStore_ListPending_Pages(t *testing.T) {
	f := &fakeDynamo{}
	seed(t, f, 120)
	s := NewDynamoStore(f, "catalog-delete-queue")

	recs, err := s.ListPending(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, recs, 50)
}

func TestDynamoStore_ListPending_FewerThanLimit(t *testing.T) {
	f := &fakeDynamo{}
	seed(t, f, 3)
	s := NewDynamoStore(f, "catalog-delete-queue")

	recs, err := s.ListPending(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, 1, f.scans)
}

func TestDynamoStore_ListPending_SkipsIncompleteRows(t *testing.T) {
	f := &fakeDynamo{items: []map[string]types.AttributeValue{
		{"QueueId": &types.AttributeValueMemberS{Value: "q1"}},
		{"QueueId": &types.AttributeValueMemberS{Value: "q2"}, "ExternalId": &types.AttributeValueMemberS{Value: "ext-2"}},
	}}
	s := NewDynamoStore(f, "t")

	recs, err := s.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ext-2", recs[0].ExternalID)
}

func TestDynamoStore_ListPending_Empty(t *testing.T) {
	s := NewDynamoStore(&fakeDynamo{}, "t")

	recs, err := s.ListPending(context.Background(), 50)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestDynamoStore_ListPending_Error(t *testing.T) {
	s := NewDynamoStore(&fakeDynamo{scanErr: errors.New("AccessDenied")}, "t")

	_, err := s.ListPending(context.Background(), 50)
	assert.ErrorContains(t, err, "AccessDenied")
}

func TestDynamoStore_EnqueueAndDelete(t *testing.T) {
	f := &fakeDynamo{}
	s := NewDynamoStore(f, "catalog-delete-queue")
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	rec, err := s.Enqueue(context.Background(), "ext-1", "prod-1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.QueueID)
	assert.Equal(t, "catalog-delete-queue", f.putTable)

	recs, err := s.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec, recs[0])

	require.NoError(t, s.DeleteByID(context.Background(), rec.QueueID))
	assert.Equal(t, []string{rec.QueueID}, f.deleted)
	assert.ErrorIs(t, s.DeleteByID(context.Background(), rec.QueueID), ErrNotFound)

	_, err = s.Enqueue(context.Background(), "", "")
	assert.Error(t, err)
}
