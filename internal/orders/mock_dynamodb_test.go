package orders

import (
	"context"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cockroachdb/errors"
)

// simpleMock is a small in-memory stand-in for the DynamoDB orders table.
// It only understands the exact expressions the store issues.
type simpleMock struct {
	mu    sync.Mutex
	table map[string]map[string]types.AttributeValue

	scanCalls   int
	queryCalls  int
	updateCalls int
}

func newSimpleMock() *simpleMock {
	return &simpleMock{
		table: map[string]map[string]types.AttributeValue{},
	}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func (m *simpleMock) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := stringAttr(in.Item, "order_id")
	if k == "" {
		return nil, errors.New("missing order_id")
	}
	m.table[k] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *simpleMock) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := stringAttr(in.Key, "order_id")
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *simpleMock) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++

	k := stringAttr(in.Key, "order_id")
	item, ok := m.table[k]
	if !ok {
		// attribute_exists(order_id) condition
		return nil, &types.ConditionalCheckFailedException{}
	}

	if v, ok := in.ExpressionAttributeValues[":new"]; ok {
		item["status"] = v
	}
	if v, ok := in.ExpressionAttributeValues[":n"]; ok {
		item["xero_invoice_number"] = v
	}
	if v, ok := in.ExpressionAttributeValues[":ua"]; ok {
		item["updated_at"] = v
	}
	if v, ok := in.ExpressionAttributeValues[":note"]; ok {
		noteList := v.(*types.AttributeValueMemberL)
		existing, _ := item["notes"].(*types.AttributeValueMemberL)
		if existing == nil {
			existing = &types.AttributeValueMemberL{}
		}
		item["notes"] = &types.AttributeValueMemberL{
			Value: append(existing.Value, noteList.Value...),
		}
	}
	m.table[k] = item
	return &dyn.UpdateItemOutput{}, nil
}

func (m *simpleMock) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanCalls++

	if in.FilterExpression == nil || !strings.Contains(*in.FilterExpression, "attribute_exists(xero_invoice_id)") {
		return nil, errors.New("unexpected filter expression")
	}

	pending := stringAttr(map[string]types.AttributeValue{"v": in.ExpressionAttributeValues[":pending"]}, "v")
	onhold := stringAttr(map[string]types.AttributeValue{"v": in.ExpressionAttributeValues[":onhold"]}, "v")
	since := stringAttr(map[string]types.AttributeValue{"v": in.ExpressionAttributeValues[":since"]}, "v")

	out := &dyn.ScanOutput{}
	for _, item := range m.table {
		status := stringAttr(item, "status")
		if status != pending && status != onhold {
			continue
		}
		if stringAttr(item, "created_at") <= since {
			continue
		}
		if stringAttr(item, "xero_invoice_id") == "" {
			continue
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (m *simpleMock) Query(ctx context.Context, in *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++

	want := stringAttr(map[string]types.AttributeValue{"v": in.ExpressionAttributeValues[":iid"]}, "v")
	out := &dyn.QueryOutput{}
	for _, item := range m.table {
		if stringAttr(item, "xero_invoice_id") == want {
			out.Items = append(out.Items, item)
			break
		}
	}
	return out, nil
}
