package orders

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/cockroachdb/errors"

	"github.com/websaleshq/xero-reconciler/internal/aws"
)

// ErrNotExists indicates a conditional write against a missing order.
var ErrNotExists = errors.New("order does not exist")

// Store encapsulates operations on the orders table.
type Store struct {
	client         aws.DynamoDBAPI
	tableName      string
	invoiceIDIndex string
	nowFunc        func() time.Time
}

// NewStore creates a new orders Store. invoiceIDIndex is the GSI keyed on
// xero_invoice_id used for webhook resource lookups.
func NewStore(client aws.DynamoDBAPI, tableName, invoiceIDIndex string) *Store {
	return &Store{
		client:         client,
		tableName:      tableName,
		invoiceIDIndex: invoiceIDIndex,
		nowFunc:        time.Now,
	}
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, errors.Wrap(err, "unmarshal order")
	}
	return &o, nil
}

// FindAwaitingPayment returns orders in pending/on-hold created after
// `since` that carry a linked Xero invoice id. These are the reconciliation
// candidates.
func (s *Store) FindAwaitingPayment(ctx context.Context, since time.Time) ([]Order, error) {
	// created_at is stored RFC3339 in UTC, so string comparison orders
	// chronologically.
	sinceAttr, err := attributevalue.Marshal(since.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "marshal since")
	}

	input := &dyn.ScanInput{
		TableName: &s.tableName,
		FilterExpression: awsString(
			"(#s = :pending OR #s = :onhold) AND created_at > :since AND attribute_exists(xero_invoice_id)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: StatusPending},
			":onhold":  &types.AttributeValueMemberS{Value: StatusOnHold},
			":since":   sinceAttr,
		},
	}

	var results []Order
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "scan orders")
		}
		var page []Order
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, errors.Wrap(err, "unmarshal orders page")
		}
		results = append(results, page...)

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return results, nil
}

// FindByInvoiceID resolves an order by its linked Xero invoice id via the
// GSI. Returns (nil, nil) when no order matches.
func (s *Store) FindByInvoiceID(ctx context.Context, invoiceID string) (*Order, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              &s.invoiceIDIndex,
		KeyConditionExpression: awsString("xero_invoice_id = :iid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":iid": &types.AttributeValueMemberS{Value: invoiceID},
		},
		Limit: awsInt32(1),
	})
	if err != nil {
		return nil, errors.Wrap(err, "query orders by invoice id")
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Items[0], &o); err != nil {
		return nil, errors.Wrap(err, "unmarshal order")
	}
	return &o, nil
}

// UpdateStatusWithNote transitions the order status and appends an audit
// note. Returns ErrNotExists if the order is gone.
func (s *Store) UpdateStatusWithNote(ctx context.Context, orderID, newStatus, note string) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression: awsString(
			"SET #s = :new, updated_at = :ua, notes = list_append(if_not_exists(notes, :empty), :note)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":   &types.AttributeValueMemberS{Value: newStatus},
			":ua":    &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":note": &types.AttributeValueMemberL{Value: []types.AttributeValue{
				&types.AttributeValueMemberS{Value: note},
			}},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrNotExists
		}
		return errors.Wrap(err, "update order status")
	}
	return nil
}

// SetInvoiceNumber caches the derived invoice number on the order.
func (s *Store) SetInvoiceNumber(ctx context.Context, orderID, invoiceNumber string) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression: awsString("SET xero_invoice_number = :n, updated_at = :ua"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n":  &types.AttributeValueMemberS{Value: invoiceNumber},
			":ua": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrNotExists
		}
		return errors.Wrap(err, "set invoice number")
	}
	return nil
}

func isConditionalCheckFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException" {
		return true
	}
	var cond *types.ConditionalCheckFailedException
	return errors.As(err, &cond)
}

func awsString(s string) *string { return &s }
func awsInt32(i int32) *int32    { return &i }
