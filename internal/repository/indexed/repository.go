// Package indexed реализует CRUD-контракт поверх key-value хранилища
// с вторичными индексами (DynamoDB).
//
// Чтение возможно только по первичному ключу или по объявленному вторичному
// индексу; форма критериев определяет путь доступа. Update и Remove требуют
// полного ключа (id + owner_id для заметок), частичные критерии сначала
// разрешаются чтением.
//
// Согласованность: чтения по первичному ключу строго согласованы, чтения
// через вторичные индексы (заметки владельца, аккаунт по email) согласованы
// лишь в конечном счете. Заметка, только что созданная через Create, может
// не попасть в выдачу Read по owner_id без повторной попытки. Вызывающая
// сторона должна учитывать это при проверках уникальности.
package indexed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"notekeeper/internal/apperr"
	"notekeeper/internal/config"
	"notekeeper/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// API подмножество методов *dynamodb.Client, которые использует адаптер
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ repository.Store = (*Store)(nil)

// Store адаптер key-value хранилища
type Store struct {
	client            API
	schemas           map[repository.Kind]keySchema
	deleteConcurrency int
	logger            *zap.Logger
}

// New создает адаптер поверх готового клиента
func New(client API, cfg *config.ConfigDynamoDB, logger *zap.Logger) *Store {
	concurrency := cfg.DeleteConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Store{
		client:            client,
		schemas:           schemasFromConfig(cfg),
		deleteConcurrency: concurrency,
		logger:            logger,
	}
}

// Read выбирает путь доступа по критериям: GetItem по полному ключу,
// Query по ключу раздела таблицы или Query по вторичному индексу.
// Критерии вне ключа превращаются в серверный фильтр.
func (s *Store) Read(ctx context.Context, kind repository.Kind, criteria repository.Criteria, opts ...repository.ReadOption) ([]repository.Record, error) {
	schema, err := s.schema(kind)
	if err != nil {
		return nil, err
	}
	path, err := schema.choosePath(criteria)
	if err != nil {
		return nil, err
	}
	ro := repository.ApplyReadOptions(opts)

	if path.getKey != nil {
		rec, found, err := s.getItem(ctx, schema, path.getKey)
		if err != nil || !found {
			return []repository.Record{}, err
		}
		if !criteria.Matches(rec) {
			return []repository.Record{}, nil
		}
		return repository.Finish([]repository.Record{rec}, ro), nil
	}

	return s.query(ctx, schema, path, criteria.Without(path.keyFields...), ro)
}

// Create генерирует id и записывает элемент с условием отсутствия ключа
func (s *Store) Create(ctx context.Context, kind repository.Kind, attrs repository.Record) (repository.Record, error) {
	schema, err := s.schema(kind)
	if err != nil {
		return nil, err
	}

	rec := attrs.Clone()
	rec[schema.partition] = uuid.NewString()
	if schema.sort != "" && rec[schema.sort] == "" {
		return nil, fmt.Errorf("%w: %s is required to create %s", apperr.ErrInvalidIdentifier, schema.sort, kind)
	}

	item, err := attributevalue.MarshalMap(map[string]string(rec))
	if err != nil {
		return nil, fmt.Errorf("attributevalue.MarshalMap: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(schema.partition))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build put condition: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(schema.table),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: values(expr),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, fmt.Errorf("%w: generated id %s already exists", apperr.ErrConflict, rec.ID())
		}
		return nil, s.wrap("PutItem", err)
	}

	s.logger.Debug("item created", zap.String("table", schema.table), zap.String("id", rec.ID()))
	return rec, nil
}

// Update обновляет элементы по полным ключам. Ключевые атрибуты таблицы не меняются.
// Условие attribute_exists не дает UpdateItem создать элемент для несуществующего ключа.
func (s *Store) Update(ctx context.Context, kind repository.Kind, criteria repository.Criteria, changes repository.Record) (repository.Ack, error) {
	schema, err := s.schema(kind)
	if err != nil {
		return repository.Ack{}, err
	}

	var update expression.UpdateBuilder
	hasSet := false
	for field, value := range changes {
		if schema.isKey(field) || repository.IsImmutable(field) {
			continue
		}
		update = update.Set(expression.Name(field), expression.Value(value))
		hasSet = true
	}
	if !hasSet {
		return repository.Ack{}, nil
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(schema.partition))).
		Build()
	if err != nil {
		return repository.Ack{}, fmt.Errorf("build update expression: %w", err)
	}

	keys, err := s.resolveKeys(ctx, kind, schema, criteria)
	if err != nil {
		return repository.Ack{}, err
	}

	var ack repository.Ack
	for _, key := range keys {
		_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(schema.table),
			Key:                       key,
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: values(expr),
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				continue
			}
			return ack, s.wrap("UpdateItem", err)
		}
		ack.Affected++
	}

	return ack, nil
}

// Remove удаляет один элемент по полному ключу либо перечисляет область
// (например, все заметки владельца) через индекс и удаляет элементы
// параллельно. Сбои отдельных удалений собираются в *apperr.BulkError.
func (s *Store) Remove(ctx context.Context, kind repository.Kind, criteria repository.Criteria) (repository.Ack, error) {
	schema, err := s.schema(kind)
	if err != nil {
		return repository.Ack{}, err
	}

	if key, ok := schema.fullKey(criteria); ok && len(criteria.Without(schema.partition, schema.sort)) == 0 {
		if _, err := schema.choosePath(criteria); err != nil {
			return repository.Ack{}, err
		}
		removed, err := s.deleteItem(ctx, schema, key)
		if err != nil {
			return repository.Ack{}, err
		}
		if removed {
			return repository.Ack{Affected: 1}, nil
		}
		return repository.Ack{}, nil
	}

	records, err := s.Read(ctx, kind, criteria)
	if err != nil {
		return repository.Ack{}, err
	}

	var (
		mu   sync.Mutex
		bulk apperr.BulkError
		g    errgroup.Group
	)
	g.SetLimit(s.deleteConcurrency)

	for _, rec := range records {
		g.Go(func() error {
			removed, err := s.deleteItem(ctx, schema, schema.keyOf(rec))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				bulk.Add(rec.ID(), err)
				return nil
			}
			if removed {
				bulk.Removed++
			}
			return nil
		})
	}
	_ = g.Wait()

	ack := repository.Ack{Affected: int64(bulk.Removed)}
	if err := bulk.OrNil(); err != nil {
		s.logger.Warn("bulk remove partially failed",
			zap.String("table", schema.table),
			zap.Int("removed", bulk.Removed),
			zap.Strings("failed", bulk.IDs()))
		return ack, err
	}

	return ack, nil
}

func (s *Store) schema(kind repository.Kind) (keySchema, error) {
	if err := kind.Validate(); err != nil {
		return keySchema{}, err
	}
	return s.schemas[kind], nil
}

// resolveKeys возвращает полные ключи элементов, подпадающих под критерии
func (s *Store) resolveKeys(ctx context.Context, kind repository.Kind, schema keySchema, criteria repository.Criteria) ([]map[string]types.AttributeValue, error) {
	if key, ok := schema.fullKey(criteria); ok && len(criteria.Without(schema.partition, schema.sort)) == 0 {
		if _, err := schema.choosePath(criteria); err != nil {
			return nil, err
		}
		return []map[string]types.AttributeValue{key}, nil
	}

	records, err := s.Read(ctx, kind, criteria)
	if err != nil {
		return nil, err
	}
	keys := make([]map[string]types.AttributeValue, 0, len(records))
	for _, rec := range records {
		keys = append(keys, schema.keyOf(rec))
	}
	return keys, nil
}

func (s *Store) getItem(ctx context.Context, schema keySchema, key map[string]types.AttributeValue) (repository.Record, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(schema.table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, s.wrap("GetItem", err)
	}
	if len(out.Item) == 0 {
		return nil, false, nil
	}

	rec, err := unmarshalRecord(out.Item)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// query выполняет Query с постраничным обходом до исчерпания результата
func (s *Store) query(ctx context.Context, schema keySchema, path accessPath, rest repository.Criteria, ro repository.ReadOptions) ([]repository.Record, error) {
	builder := expression.NewBuilder().WithKeyCondition(path.keyCond)

	var filter expression.ConditionBuilder
	hasFilter := false
	for field, value := range rest {
		cond := expression.Name(field).Equal(expression.Value(value))
		if hasFilter {
			filter = filter.And(cond)
		} else {
			filter = cond
			hasFilter = true
		}
	}
	if hasFilter {
		builder = builder.WithFilter(filter)
	}

	// Серверная сортировка доступна только по ключу сортировки выбранного пути
	sortedByKey := ro.Order == nil || (path.sortKey != "" && ro.Order.Field == path.sortKey)
	serverProjection := len(ro.Projection) > 0 && sortedByKey
	if serverProjection {
		names := make([]expression.NameBuilder, 0, len(ro.Projection))
		for _, f := range ro.Projection {
			names = append(names, expression.Name(f))
		}
		builder = builder.WithProjection(expression.NamesList(names[0], names[1:]...))
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build query expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(schema.table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: values(expr),
	}
	if path.index != "" {
		input.IndexName = aws.String(path.index)
	}
	if path.consistent() {
		input.ConsistentRead = aws.Bool(true)
	}
	if ro.Order != nil && sortedByKey {
		input.ScanIndexForward = aws.Bool(ro.Order.Direction == repository.Asc)
	}

	records := make([]repository.Record, 0)
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.wrap("Query", err)
		}
		for _, item := range page.Items {
			rec, err := unmarshalRecord(item)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}

	if sortedByKey && !serverProjection {
		return repository.Finish(records, repository.ReadOptions{Projection: ro.Projection}), nil
	}
	if sortedByKey {
		return records, nil
	}
	return repository.Finish(records, ro), nil
}

func (s *Store) deleteItem(ctx context.Context, schema keySchema, key map[string]types.AttributeValue) (bool, error) {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(schema.table),
		Key:          key,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, s.wrap("DeleteItem", err)
	}
	return len(out.Attributes) > 0, nil
}

// wrap классифицирует ошибки клиента: ValidationException означает
// неправильный ключ, остальное считается недоступностью хранилища
func (s *Store) wrap(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException" {
		return fmt.Errorf("%s: %w: %s", op, apperr.ErrInvalidIdentifier, apiErr.ErrorMessage())
	}
	return apperr.Unavailable(op, err)
}

func unmarshalRecord(item map[string]types.AttributeValue) (repository.Record, error) {
	var m map[string]string
	if err := attributevalue.UnmarshalMap(item, &m); err != nil {
		return nil, fmt.Errorf("attributevalue.UnmarshalMap: %w", err)
	}
	return repository.Record(m), nil
}

// values не передает пустую карту значений: DynamoDB отклоняет пустой ExpressionAttributeValues
func values(expr expression.Expression) map[string]types.AttributeValue {
	v := expr.Values()
	if len(v) == 0 {
		return nil
	}
	return v
}
