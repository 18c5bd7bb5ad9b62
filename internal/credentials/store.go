package credentials

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"

	"github.com/websaleshq/xero-reconciler/internal/aws"
)

// Store persists the credential record in DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore returns a Store bound to the credentials table.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Load fetches the credential record. Returns (nil, nil) if no record has
// been persisted yet.
func (s *Store) Load(ctx context.Context) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"record_id": &types.AttributeValueMemberS{Value: RecordID},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "get credential record")
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, errors.Wrap(err, "unmarshal credential record")
	}
	return &rec, nil
}

// Save writes the full record in a single put. Callers mutate a copy and
// save once, so a failed provider exchange never leaves partial state.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	rec.RecordID = RecordID
	rec.UpdatedAt = s.nowFunc()

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return errors.Wrap(err, "marshal credential record")
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return errors.Wrap(err, "put credential record")
	}
	return nil
}
