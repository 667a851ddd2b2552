package datastore_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiptapinc/zerog-go/internal/zerog/datastore"
	"github.com/tiptapinc/zerog-go/internal/zerog/datastore/datastorefakes"
	zgerrors "github.com/tiptapinc/zerog-go/pkg/errors"
)

func TestDynamoStore_Create(t *testing.T) {
	client := &datastorefakes.FakeDynamoDBAPI{}
	store := datastore.NewDynamoStoreWithClient(client, "test-table")

	client.PutItemReturns(&dynamodb.PutItemOutput{}, nil)

	err := store.Create(context.Background(), "k1", []byte("hello"))
	require.NoError(t, err)

	require.Equal(t, 1, client.PutItemCallCount())
	_, input := client.PutItemArgsForCall(0)
	assert.Equal(t, "test-table", *input.TableName)
	assert.Equal(t, "attribute_not_exists(#k)", *input.ConditionExpression)
}

func TestDynamoStore_CreateAlreadyExists(t *testing.T) {
	client := &datastorefakes.FakeDynamoDBAPI{}
	store := datastore.NewDynamoStoreWithClient(client, "test-table")

	client.PutItemReturns(nil, &types.ConditionalCheckFailedException{
		Message: aws.String("conditional request failed"),
	})

	err := store.Create(context.Background(), "dup", []byte("v"))
	require.Error(t, err)

	kind, ok := zgerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, zgerrors.KindExists, kind)
}

func TestDynamoStore_SetWithCASMismatch(t *testing.T) {
	client := &datastorefakes.FakeDynamoDBAPI{}
	store := datastore.NewDynamoStoreWithClient(client, "test-table")

	client.PutItemReturns(nil, &types.ConditionalCheckFailedException{
		Message: aws.String("conditional request failed"),
	})

	_, err := store.SetWithCAS(context.Background(), "k1", []byte("v2"), 7)
	require.Error(t, err)

	kind, ok := zgerrors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, zgerrors.KindCASMismatch, kind)
}

func TestDynamoStore_ReadWithCASMissing(t *testing.T) {
	client := &datastorefakes.FakeDynamoDBAPI{}
	store := datastore.NewDynamoStoreWithClient(client, "test-table")

	client.GetItemReturns(&dynamodb.GetItemOutput{Item: nil}, nil)

	_, _, ok, err := store.ReadWithCAS(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDynamoStore_ReadWithCASFound(t *testing.T) {
	client := &datastorefakes.FakeDynamoDBAPI{}
	store := datastore.NewDynamoStoreWithClient(client, "test-table")

	client.GetItemReturns(&dynamodb.GetItemOutput{
		Item: map[string]types.AttributeValue{
			"value": &types.AttributeValueMemberB{Value: []byte("hello")},
			"cas":   &types.AttributeValueMemberN{Value: "3"},
		},
	}, nil)

	value, cas, ok, err := store.ReadWithCAS(context.Background(), "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(value))
	assert.Equal(t, uint64(3), cas)
}
