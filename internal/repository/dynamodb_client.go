package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"invocation-logger/internal/domain"
)

const (
	pkPrefixReq = "REQ#"
	skPrefixTS  = "TS#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL on log items
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Client wraps a DynamoDB table holding one item per handled invocation.
// Constructed once at startup and shared read-only by every invocation.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// reqPK returns the partition key for an invocation's log item.
func reqPK(requestID string) string {
	return pkPrefixReq + requestID
}

// tsSK returns the sort key derived from the record timestamp.
func tsSK(ts time.Time) string {
	return skPrefixTS + ts.UTC().Format(time.RFC3339Nano)
}

// ttlValue returns a Unix timestamp 30 days in the future.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// Ping verifies the table is reachable. Called once at startup so an
// unreachable or missing table fails the process before it serves requests.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	})
	if err != nil {
		return fmt.Errorf("repository: Ping table %q: %w", c.tableName, err)
	}
	return nil
}

// WriteRecord persists one log record. A single round trip, no retry; the
// conditional put rejects a duplicate key rather than overwriting it.
func (c *Client) WriteRecord(ctx context.Context, rec domain.LogRecord) error {
	if rec.RequestID == "" {
		return errors.New("repository: WriteRecord: request ID is required")
	}
	if rec.Timestamp.IsZero() {
		return errors.New("repository: WriteRecord: timestamp is required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                recordItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: WriteRecord: %w", err)
	}
	return nil
}

func recordItem(rec domain.LogRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":              &types.AttributeValueMemberS{Value: reqPK(rec.RequestID)},
		"SK":              &types.AttributeValueMemberS{Value: tsSK(rec.Timestamp)},
		"message":         &types.AttributeValueMemberS{Value: rec.Message},
		"invocationCount": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.InvocationCount)},
		"requestId":       &types.AttributeValueMemberS{Value: rec.RequestID},
		"timestamp":       &types.AttributeValueMemberS{Value: rec.Timestamp.UTC().Format(time.RFC3339Nano)},
		"cpuCores":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.CPUCores)},
		"memoryLimitMb":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.MemoryLimitMB)},
		"deadlineMs":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.DeadlineUnixMS)},
		"ttl":             &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue())},
	}
}
