// Hand-written in the shape counterfeiter generates; not generator output.
package datastorefakes

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// FakeDynamoDBAPI is a counterfeiter-style hand fake for
// datastore.DynamoDBAPI, used where the real code generator can't be run.
type FakeDynamoDBAPI struct {
	mu sync.Mutex

	GetItemStub        func(context.Context, *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	getItemCalls        []getItemCall
	getItemReturns      getItemReturn

	PutItemStub        func(context.Context, *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	putItemCalls        []putItemCall
	putItemReturns      putItemReturn

	DeleteItemStub   func(context.Context, *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	deleteItemCalls  []deleteItemCall
	deleteItemReturns deleteItemReturn

	DescribeTableStub func(context.Context, *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error)
}

type getItemCall struct {
	ctx   context.Context
	input *dynamodb.GetItemInput
}
type getItemReturn struct {
	out *dynamodb.GetItemOutput
	err error
}

type putItemCall struct {
	ctx   context.Context
	input *dynamodb.PutItemInput
}
type putItemReturn struct {
	out *dynamodb.PutItemOutput
	err error
}

type deleteItemCall struct {
	ctx   context.Context
	input *dynamodb.DeleteItemInput
}
type deleteItemReturn struct {
	out *dynamodb.DeleteItemOutput
	err error
}

func (f *FakeDynamoDBAPI) GetItem(ctx context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	f.getItemCalls = append(f.getItemCalls, getItemCall{ctx, input})
	f.mu.Unlock()
	if f.GetItemStub != nil {
		return f.GetItemStub(ctx, input)
	}
	return f.getItemReturns.out, f.getItemReturns.err
}

func (f *FakeDynamoDBAPI) GetItemReturns(out *dynamodb.GetItemOutput, err error) {
	f.getItemReturns = getItemReturn{out, err}
}

func (f *FakeDynamoDBAPI) GetItemCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.getItemCalls)
}

func (f *FakeDynamoDBAPI) GetItemArgsForCall(i int) (context.Context, *dynamodb.GetItemInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.getItemCalls[i]
	return c.ctx, c.input
}

func (f *FakeDynamoDBAPI) PutItem(ctx context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	f.putItemCalls = append(f.putItemCalls, putItemCall{ctx, input})
	f.mu.Unlock()
	if f.PutItemStub != nil {
		return f.PutItemStub(ctx, input)
	}
	return f.putItemReturns.out, f.putItemReturns.err
}

func (f *FakeDynamoDBAPI) PutItemReturns(out *dynamodb.PutItemOutput, err error) {
	f.putItemReturns = putItemReturn{out, err}
}

func (f *FakeDynamoDBAPI) PutItemCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.putItemCalls)
}

func (f *FakeDynamoDBAPI) PutItemArgsForCall(i int) (context.Context, *dynamodb.PutItemInput) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.putItemCalls[i]
	return c.ctx, c.input
}

func (f *FakeDynamoDBAPI) DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	f.deleteItemCalls = append(f.deleteItemCalls, deleteItemCall{ctx, input})
	f.mu.Unlock()
	if f.DeleteItemStub != nil {
		return f.DeleteItemStub(ctx, input)
	}
	return f.deleteItemReturns.out, f.deleteItemReturns.err
}

func (f *FakeDynamoDBAPI) DeleteItemReturns(out *dynamodb.DeleteItemOutput, err error) {
	f.deleteItemReturns = deleteItemReturn{out, err}
}

func (f *FakeDynamoDBAPI) DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.DescribeTableStub != nil {
		return f.DescribeTableStub(ctx, input)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}
