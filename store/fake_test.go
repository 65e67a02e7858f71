package store_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo is an in-memory stand-in for the table service. It understands
// the key-condition shapes the store issues: partition-key equality plus an
// optional begins_with, >=, or between on the sort key, on the primary index
// or one of the two GSIs.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
}

func sval(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func itemKey(item map[string]types.AttributeValue) string {
	return sval(item["PK"]) + "\x00" + sval(item["SK"])
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func (f *fakeDynamo) numItems() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

func (f *fakeDynamo) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[itemKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items[itemKey(params.Item)] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.items, itemKey(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) TransactGetItems(ctx context.Context, params *dynamodb.TransactGetItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactGetItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := &dynamodb.TransactGetItemsOutput{}
	for _, t := range params.TransactItems {
		resp := types.ItemResponse{}
		if item, ok := f.items[itemKey(t.Get.Key)]; ok {
			resp.Item = copyItem(item)
		}
		out.Responses = append(out.Responses, resp)
	}
	return out, nil
}

func (f *fakeDynamo) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range params.TransactItems {
		switch {
		case t.Put != nil:
			f.items[itemKey(t.Put.Item)] = copyItem(t.Put.Item)
		case t.Delete != nil:
			delete(f.items, itemKey(t.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pkAttr, skAttr := "PK", "SK"
	onIndex := params.IndexName != nil && *params.IndexName != ""
	if onIndex {
		switch *params.IndexName {
		case "GSI1":
			pkAttr, skAttr = "GSI1PK", "GSI1SK"
		case "GSI2":
			pkAttr, skAttr = "GSI2PK", "GSI2SK"
		}
	}

	pk := sval(params.ExpressionAttributeValues[":pk"])
	cond := *params.KeyConditionExpression

	var matched []map[string]types.AttributeValue
	for _, item := range f.items {
		if sval(item[pkAttr]) != pk {
			continue
		}
		sk := sval(item[skAttr])
		switch {
		case strings.Contains(cond, "begins_with"):
			if !strings.HasPrefix(sk, sval(params.ExpressionAttributeValues[":sk"])) {
				continue
			}
		case strings.Contains(cond, "between"):
			if sk < sval(params.ExpressionAttributeValues[":sk1"]) ||
				sk > sval(params.ExpressionAttributeValues[":sk2"]) {
				continue
			}
		case strings.Contains(cond, ">="):
			if sk < sval(params.ExpressionAttributeValues[":sk"]) {
				continue
			}
		}
		matched = append(matched, item)
	}

	sort.Slice(matched, func(i, j int) bool {
		si, sj := sval(matched[i][skAttr]), sval(matched[j][skAttr])
		if si != sj {
			return si < sj
		}
		return itemKey(matched[i]) < itemKey(matched[j])
	})

	// Resume strictly after the exclusive start key. The referenced item
	// may have been deleted since the token was issued; fall back to sort
	// order in that case.
	if start := params.ExclusiveStartKey; len(start) > 0 {
		startID := sval(start["PK"]) + "\x00" + sval(start["SK"])
		pos := -1
		for i, item := range matched {
			if itemKey(item) == startID {
				pos = i
				break
			}
		}
		if pos >= 0 {
			matched = matched[pos+1:]
		} else {
			startSK := sval(start[skAttr])
			for len(matched) > 0 && sval(matched[0][skAttr]) <= startSK {
				matched = matched[1:]
			}
		}
	}

	out := &dynamodb.QueryOutput{}
	limit := len(matched)
	if params.Limit != nil && int(*params.Limit) < limit {
		limit = int(*params.Limit)
	}

	for _, item := range matched[:limit] {
		out.Items = append(out.Items, copyItem(item))
	}

	// Like the real service, a scan that stops at its limit reports a
	// continuation key even when nothing happens to remain beyond it.
	if params.Limit != nil && limit == int(*params.Limit) && limit > 0 {
		last := matched[limit-1]
		lek := map[string]types.AttributeValue{
			"PK": last["PK"],
			"SK": last["SK"],
		}
		if onIndex {
			lek[pkAttr] = last[pkAttr]
			lek[skAttr] = last[skAttr]
		}
		out.LastEvaluatedKey = lek
	}

	return out, nil
}
