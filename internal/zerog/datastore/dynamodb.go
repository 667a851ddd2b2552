package datastore

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	zgerrors "github.com/tiptapinc/zerog-go/pkg/errors"
)

//counterfeiter:generate . DynamoDBAPI

// DynamoDBAPI is the subset of the DynamoDB client this backend calls,
// narrow enough to fake in tests.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// maxTimeoutRetries is the spec §4.1 "retried up to three times
// transparently" bound: 3 retries after the initial attempt, 4 tries total.
const maxTimeoutRetries = 3

// DynamoStore is a Store backed by a single DynamoDB table. Each item
// carries the opaque value under a "value" binary attribute and a "cas"
// numeric attribute that increments on every successful write; CAS
// checks map onto ConditionExpression the same way the record-change
// loop expects.
type DynamoStore struct {
	client    DynamoDBAPI
	tableName string
}

// NewDynamoStore creates a DynamoStore, auto-detecting the region from
// EC2 instance metadata when one isn't supplied.
func NewDynamoStore(ctx context.Context, region, tableName string) (*DynamoStore, error) {
	if tableName == "" {
		return nil, fmt.Errorf("datastore: tableName is required")
	}

	awsCfg, err := loadAWSConfig(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("datastore: failed to load AWS config: %w", err)
	}

	return &DynamoStore{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: tableName,
	}, nil
}

// NewDynamoStoreWithClient injects a DynamoDBAPI directly, for tests.
func NewDynamoStoreWithClient(client DynamoDBAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName}
}

func loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	if region == "" {
		cfg, err := config.LoadDefaultConfig(ctx)
		if err == nil {
			imdsClient := imds.NewFromConfig(cfg)
			if resp, err := imdsClient.GetRegion(ctx, &imds.GetRegionInput{}); err == nil {
				region = resp.Region
			}
		}
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

func (d *DynamoStore) Create(ctx context.Context, key string, value []byte) error {
	return withTimeoutRetry(ctx, func(ctx context.Context) error {
		input := &dynamodb.PutItemInput{
			TableName: aws.String(d.tableName),
			Item: map[string]types.AttributeValue{
				"key":   &types.AttributeValueMemberS{Value: key},
				"value": &types.AttributeValueMemberB{Value: value},
				"cas":   &types.AttributeValueMemberN{Value: "1"},
			},
			ConditionExpression: aws.String("attribute_not_exists(#k)"),
			ExpressionAttributeNames: map[string]string{
				"#k": "key",
			},
		}
		_, err := d.client.PutItem(ctx, input)
		if isConditionFailed(err) {
			return zgerrors.Wrap(zgerrors.KindExists, "key exists: "+key, err)
		}
		return err
	})
}

func (d *DynamoStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	value, _, ok, err := d.ReadWithCAS(ctx, key)
	return value, ok, err
}

func (d *DynamoStore) ReadWithCAS(ctx context.Context, key string) ([]byte, uint64, bool, error) {
	var value []byte
	var cas uint64
	var ok bool

	err := withTimeoutRetry(ctx, func(ctx context.Context) error {
		out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(d.tableName),
			Key: map[string]types.AttributeValue{
				"key": &types.AttributeValueMemberS{Value: key},
			},
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return err
		}
		if out.Item == nil {
			ok = false
			return nil
		}
		ok = true
		if v, isType := out.Item["value"].(*types.AttributeValueMemberB); isType {
			value = v.Value
		}
		if c, isType := out.Item["cas"].(*types.AttributeValueMemberN); isType {
			fmt.Sscanf(c.Value, "%d", &cas)
		}
		return nil
	})
	return value, cas, ok, err
}

func (d *DynamoStore) SetWithCAS(ctx context.Context, key string, value []byte, cas uint64) (uint64, error) {
	newCas := cas + 1
	if cas == 0 {
		newCas = 1
	}

	err := withTimeoutRetry(ctx, func(ctx context.Context) error {
		input := &dynamodb.PutItemInput{
			TableName: aws.String(d.tableName),
			Item: map[string]types.AttributeValue{
				"key":   &types.AttributeValueMemberS{Value: key},
				"value": &types.AttributeValueMemberB{Value: value},
				"cas":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", newCas)},
			},
		}
		if cas == 0 {
			input.ConditionExpression = aws.String("attribute_not_exists(#k) OR #c = :cas")
		} else {
			input.ConditionExpression = aws.String("#c = :cas")
		}
		input.ExpressionAttributeNames = map[string]string{"#k": "key", "#c": "cas"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":cas": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", cas)},
		}

		_, err := d.client.PutItem(ctx, input)
		if isConditionFailed(err) {
			return zgerrors.Wrap(zgerrors.KindCASMismatch, "cas mismatch for key: "+key, err)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return newCas, nil
}

func (d *DynamoStore) Delete(ctx context.Context, key string) error {
	return withTimeoutRetry(ctx, func(ctx context.Context) error {
		_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.tableName),
			Key: map[string]types.AttributeValue{
				"key": &types.AttributeValueMemberS{Value: key},
			},
		})
		return err
	})
}

// Lock acquires an exclusive hold using a conditional write against a
// sibling "lock:{key}" item, expiring after ttl seconds.
func (d *DynamoStore) Lock(ctx context.Context, key string, ttl int) (string, error) {
	lockKey := "lock:" + key
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	expires := time.Now().Add(time.Duration(ttl) * time.Second).Unix()

	err := withTimeoutRetry(ctx, func(ctx context.Context) error {
		_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(d.tableName),
			Item: map[string]types.AttributeValue{
				"key":     &types.AttributeValueMemberS{Value: lockKey},
				"token":   &types.AttributeValueMemberS{Value: token},
				"expires": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expires)},
			},
			ConditionExpression: aws.String("attribute_not_exists(#k) OR expires < :now"),
			ExpressionAttributeNames: map[string]string{
				"#k": "key",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
			},
		})
		if isConditionFailed(err) {
			return zgerrors.Wrap(zgerrors.KindLocked, "key already locked: "+key, err)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (d *DynamoStore) Unlock(ctx context.Context, key, token string) error {
	lockKey := "lock:" + key
	return withTimeoutRetry(ctx, func(ctx context.Context) error {
		_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(d.tableName),
			Key: map[string]types.AttributeValue{
				"key": &types.AttributeValueMemberS{Value: lockKey},
			},
			ConditionExpression: aws.String("token = :token"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":token": &types.AttributeValueMemberS{Value: token},
			},
		})
		if isConditionFailed(err) {
			return zgerrors.Wrap(zgerrors.KindLocked, "unlock token mismatch for key: "+key, err)
		}
		return err
	})
}

func (d *DynamoStore) Close() error { return nil }

func isConditionFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

// withTimeoutRetry applies the spec §4.1 timeout retry policy: transient
// timeouts are retried up to maxTimeoutRetries times before propagating.
func withTimeoutRetry(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= maxTimeoutRetries; attempt++ {
		err = op(ctx)
		if err == nil || !isTimeoutErr(err) {
			return err
		}
	}
	return zgerrors.Wrap(zgerrors.KindTimeout, "datastore operation timed out", err)
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
