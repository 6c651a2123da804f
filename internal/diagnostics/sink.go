// Package diagnostics records free-text failure messages for operators.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink is an append-only destination for failure messages.
type Sink interface {
	Append(ctx context.Context, message string) error
}

// debugLogTTL is how long rows stay in the debug-log table.
const debugLogTTL = 30 * 24 * time.Hour

type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoSink appends one row per message to a debug-log table.
// PK = LOG#<source>#<yyyy-mm-dd>, SK = <rfc3339nano>#<uuid>.
type DynamoSink struct {
	ddb    PutItemAPI
	table  string
	source string
	now    func() time.Time
}

func NewDynamoSink(ddb PutItemAPI, table, source string) *DynamoSink {
	return &DynamoSink{ddb: ddb, table: table, source: source, now: time.Now}
}

func (s *DynamoSink) Append(ctx context.Context, message string) error {
	now := s.now().UTC()
	exp := now.Add(debugLogTTL).Unix()

	_, err := s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: fmt.Sprintf("LOG#%s#%s", s.source, now.Format("2006-01-02"))},
			"SK":        &types.AttributeValueMemberS{Value: fmt.Sprintf("%s#%s", now.Format(time.RFC3339Nano), uuid.NewString())},
			"Source":    &types.AttributeValueMemberS{Value: s.source},
			"Message":   &types.AttributeValueMemberS{Value: message},
			"CreatedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			"ExpiresAt": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", exp)},
		},
	})
	if err != nil {
		return fmt.Errorf("ddb put debug log: %w", err)
	}
	return nil
}

type PublishAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSink publishes each message to an alerts topic.
type SNSSink struct {
	sns      PublishAPI
	topicArn string
	subject  string
}

func NewSNSSink(client PublishAPI, topicArn, subject string) *SNSSink {
	return &SNSSink{sns: client, topicArn: topicArn, subject: subject}
}

func (s *SNSSink) Append(ctx context.Context, message string) error {
	_, err := s.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicArn),
		Subject:  aws.String(s.subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// LogSink writes messages to the structured log.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(_ context.Context, message string) error {
	s.logger.Warn("diagnostic", zap.String("message", message))
	return nil
}

// Multi appends to every sink and joins their errors.
type Multi []Sink

func (m Multi) Append(ctx context.Context, message string) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink = (*DynamoSink)(nil)
	_ Sink = (*SNSSink)(nil)
	_ Sink = (*LogSink)(nil)
	_ Sink = Multi(nil)
)
