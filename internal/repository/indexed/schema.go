package indexed

import (
	"fmt"
	"sort"

	"notekeeper/internal/apperr"
	"notekeeper/internal/config"
	"notekeeper/internal/repository"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// secondaryIndex описание глобального вторичного индекса
type secondaryIndex struct {
	name      string
	partition string
	sort      string
}

// keySchema ключи таблицы одного типа сущности
type keySchema struct {
	table     string
	partition string
	sort      string
	indexes   []secondaryIndex
}

// schemasFromConfig описывает физическую раскладку:
//
//	notes:    PK id, SK owner_id; индекс owner_id (PK) + name (SK)
//	accounts: PK id;              индекс email (PK)
func schemasFromConfig(cfg *config.ConfigDynamoDB) map[repository.Kind]keySchema {
	return map[repository.Kind]keySchema{
		repository.KindNote: {
			table:     cfg.NotesTable,
			partition: repository.FieldID,
			sort:      repository.FieldOwnerID,
			indexes: []secondaryIndex{
				{name: cfg.OwnerIndex, partition: repository.FieldOwnerID, sort: repository.FieldName},
			},
		},
		repository.KindAccount: {
			table:     cfg.AccountsTable,
			partition: repository.FieldID,
			indexes: []secondaryIndex{
				{name: cfg.EmailIndex, partition: repository.FieldEmail},
			},
		},
	}
}

// isKey сообщает, является ли поле частью первичного ключа таблицы
func (k keySchema) isKey(field string) bool {
	return field == k.partition || (k.sort != "" && field == k.sort)
}

// fullKey возвращает первичный ключ, если критерии содержат все его части
func (k keySchema) fullKey(criteria repository.Criteria) (map[string]types.AttributeValue, bool) {
	pk, ok := criteria[k.partition]
	if !ok {
		return nil, false
	}
	key := map[string]types.AttributeValue{
		k.partition: &types.AttributeValueMemberS{Value: pk},
	}
	if k.sort != "" {
		sk, ok := criteria[k.sort]
		if !ok {
			return nil, false
		}
		key[k.sort] = &types.AttributeValueMemberS{Value: sk}
	}
	return key, true
}

// keyOf извлекает первичный ключ из прочитанной записи
func (k keySchema) keyOf(rec repository.Record) map[string]types.AttributeValue {
	key, _ := k.fullKey(repository.Criteria(rec))
	return key
}

// accessPath выбранный способ чтения
type accessPath struct {
	// getKey заполнен, когда критерии задают полный первичный ключ
	getKey map[string]types.AttributeValue
	// index пуст для запроса к базовой таблице
	index     string
	keyCond   expression.KeyConditionBuilder
	keyFields []string
	sortKey   string
}

// consistent сообщает, можно ли читать строго согласованно (только базовая таблица)
func (p accessPath) consistent() bool {
	return p.index == ""
}

// choosePath выбирает первичный ключ или вторичный индекс по форме критериев
func (k keySchema) choosePath(criteria repository.Criteria) (accessPath, error) {
	if id, ok := criteria[k.partition]; ok {
		if _, err := uuid.Parse(id); err != nil {
			return accessPath{}, fmt.Errorf("%w: %q is not a valid key", apperr.ErrInvalidIdentifier, id)
		}
		if key, ok := k.fullKey(criteria); ok {
			fields := []string{k.partition}
			if k.sort != "" {
				fields = append(fields, k.sort)
			}
			return accessPath{getKey: key, keyFields: fields}, nil
		}
		return accessPath{
			keyCond:   expression.Key(k.partition).Equal(expression.Value(id)),
			keyFields: []string{k.partition},
			sortKey:   k.sort,
		}, nil
	}

	for _, idx := range k.indexes {
		pv, ok := criteria[idx.partition]
		if !ok {
			continue
		}
		path := accessPath{
			index:     idx.name,
			keyCond:   expression.Key(idx.partition).Equal(expression.Value(pv)),
			keyFields: []string{idx.partition},
			sortKey:   idx.sort,
		}
		if idx.sort != "" {
			if sv, ok := criteria[idx.sort]; ok {
				path.keyCond = expression.KeyAnd(path.keyCond, expression.Key(idx.sort).Equal(expression.Value(sv)))
				path.keyFields = append(path.keyFields, idx.sort)
			}
		}
		return path, nil
	}

	fields := make([]string, 0, len(criteria))
	for f := range criteria {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return accessPath{}, fmt.Errorf("%w: no key or index of table %q serves criteria %v",
		apperr.ErrInvalidIdentifier, k.table, fields)
}
