package indexed

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

var (
	equalityRe  = regexp.MustCompile(`(#\w+)\s*=\s*(:\w+)`)
	existsRe    = regexp.MustCompile(`attribute_(not_)?exists\s*\(\s*(#\w+)\s*\)`)
	nameTokenRe = regexp.MustCompile(`#\w+`)
)

type fakeTable struct {
	keys    []string
	indexes map[string]string // имя индекса -> атрибут сортировки
	items   map[string]map[string]types.AttributeValue
}

// fakeDynamo - таблицы в памяти, вычисляющие выражения, которые строит expression.Builder.
// Индексы отстают от таблицы на lag запросов, как GSI с отложенной согласованностью.
type fakeDynamo struct {
	mu       sync.Mutex
	tables   map[string]*fakeTable
	pageSize int
	lag      int
	pending  map[string]int

	failDelete map[string]error
	failAll    error

	queries []*dynamodb.QueryInput
	gets    []*dynamodb.GetItemInput
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		tables: map[string]*fakeTable{
			"notes": {
				keys:    []string{"id", "owner_id"},
				indexes: map[string]string{"owner_id-name-index": "name"},
				items:   map[string]map[string]types.AttributeValue{},
			},
			"users": {
				keys:    []string{"id"},
				indexes: map[string]string{"email-index": ""},
				items:   map[string]map[string]types.AttributeValue{},
			},
		},
		pageSize:   100,
		pending:    map[string]int{},
		failDelete: map[string]error{},
	}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (t *fakeTable) keyString(item map[string]types.AttributeValue) string {
	parts := make([]string, 0, len(t.keys))
	for _, k := range t.keys {
		parts = append(parts, str(item[k]))
	}
	return strings.Join(parts, "|")
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func equalities(expr *string, names map[string]string, values map[string]types.AttributeValue) map[string]string {
	out := map[string]string{}
	for _, m := range equalityRe.FindAllStringSubmatch(aws.ToString(expr), -1) {
		out[names[m[1]]] = str(values[m[2]])
	}
	return out
}

func matchesAll(item map[string]types.AttributeValue, conds map[string]string) bool {
	for field, want := range conds {
		av, ok := item[field]
		if !ok || str(av) != want {
			return false
		}
	}
	return true
}

// conditionHolds проверяет attribute_exists / attribute_not_exists для текущего элемента
func conditionHolds(expr *string, names map[string]string, current map[string]types.AttributeValue) bool {
	for _, m := range existsRe.FindAllStringSubmatch(aws.ToString(expr), -1) {
		_, exists := current[names[m[2]]]
		if m[1] == "" && !exists {
			return false
		}
		if m[1] != "" && exists {
			return false
		}
	}
	return true
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDynamo) table(name *string) *fakeTable {
	return f.tables[aws.ToString(name)]
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, in)
	if f.failAll != nil {
		return nil, f.failAll
	}

	t := f.table(in.TableName)
	item, ok := t.items[t.keyString(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}

	t := f.table(in.TableName)
	key := t.keyString(in.Item)
	if !conditionHolds(in.ConditionExpression, in.ExpressionAttributeNames, t.items[key]) {
		return nil, conditionFailed()
	}

	t.items[key] = copyItem(in.Item)
	if f.lag > 0 {
		f.pending[key] = f.lag
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}

	t := f.table(in.TableName)
	key := t.keyString(in.Key)
	current := t.items[key]
	if !conditionHolds(in.ConditionExpression, in.ExpressionAttributeNames, current) {
		return nil, conditionFailed()
	}

	updated := copyItem(current)
	for k, v := range in.Key {
		updated[k] = v
	}
	for field, value := range equalities(in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		updated[field] = &types.AttributeValueMemberS{Value: value}
	}
	t.items[key] = updated
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	if err, ok := f.failDelete[str(in.Key["id"])]; ok {
		return nil, err
	}

	t := f.table(in.TableName)
	key := t.keyString(in.Key)
	old, ok := t.items[key]
	delete(t.items, key)

	out := &dynamodb.DeleteItemOutput{}
	if ok && in.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = old
	}
	return out, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, in)
	if f.failAll != nil {
		return nil, f.failAll
	}

	onIndex := in.IndexName != nil
	if onIndex && aws.ToBool(in.ConsistentRead) {
		return nil, &smithy.GenericAPIError{
			Code:    "ValidationException",
			Message: "Consistent reads are not supported on global secondary indexes",
		}
	}

	t := f.table(in.TableName)
	conds := equalities(in.KeyConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	for k, v := range equalities(in.FilterExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues) {
		conds[k] = v
	}

	sortField := ""
	if len(t.keys) > 1 {
		sortField = t.keys[1]
	}
	if onIndex {
		sortField = t.indexes[aws.ToString(in.IndexName)]
	}

	var matched []map[string]types.AttributeValue
	for key, item := range t.items {
		if onIndex && f.pending[key] > 0 {
			f.pending[key]--
			continue
		}
		if matchesAll(item, conds) {
			matched = append(matched, copyItem(item))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := str(matched[i][sortField]), str(matched[j][sortField])
		if a == b {
			return str(matched[i]["id"]) < str(matched[j]["id"])
		}
		if in.ScanIndexForward != nil && !*in.ScanIndexForward {
			return a > b
		}
		return a < b
	})

	start := 0
	if pos, ok := in.ExclusiveStartKey["_pos"]; ok {
		start, _ = strconv.Atoi(str(pos))
	}
	end := start + f.pageSize
	if end > len(matched) {
		end = len(matched)
	}

	out := &dynamodb.QueryOutput{}
	for _, item := range matched[start:end] {
		if in.ProjectionExpression != nil {
			projected := map[string]types.AttributeValue{}
			for _, token := range nameTokenRe.FindAllString(*in.ProjectionExpression, -1) {
				field := in.ExpressionAttributeNames[token]
				if v, ok := item[field]; ok {
					projected[field] = v
				}
			}
			item = projected
		}
		out.Items = append(out.Items, item)
	}
	out.Count = int32(len(out.Items))
	if end < len(matched) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"_pos": &types.AttributeValueMemberS{Value: strconv.Itoa(end)},
		}
	}
	return out, nil
}

var errThrottled = errors.New("ProvisionedThroughputExceededException: rate exceeded")

var _ API = (*fakeDynamo)(nil)
