// Package document реализует CRUD-контракт поверх документного хранилища (MongoDB).
//
// Критерии транслируются в нативный фильтр равенства, проекция и сортировка
// выполняются сервером. Адаптер обеспечивает чтение после записи и служит
// эталонным поведением для остальных адаптеров.
package document

import (
	"context"
	"fmt"

	"notekeeper/internal/apperr"
	"notekeeper/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const mongoIDField = "_id"

// Collection подмножество методов *mongo.Collection, которые использует адаптер
type Collection interface {
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

var _ repository.Store = (*Store)(nil)

// Store адаптер документного хранилища
type Store struct {
	collections map[repository.Kind]Collection
	logger      *zap.Logger
}

// New создает адаптер поверх коллекций заметок и аккаунтов
func New(notes, accounts Collection, logger *zap.Logger) *Store {
	return &Store{
		collections: map[repository.Kind]Collection{
			repository.KindNote:    notes,
			repository.KindAccount: accounts,
		},
		logger: logger,
	}
}

// Read выполняет find с фильтром, проекцией и сортировкой на стороне сервера
func (s *Store) Read(ctx context.Context, kind repository.Kind, criteria repository.Criteria, opts ...repository.ReadOption) ([]repository.Record, error) {
	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	filter, err := toFilter(criteria)
	if err != nil {
		return nil, err
	}

	ro := repository.ApplyReadOptions(opts)
	findOpts := options.Find()
	if len(ro.Projection) > 0 {
		findOpts.SetProjection(toProjection(ro.Projection))
	}
	if ro.Order != nil {
		dir := 1
		if ro.Order.Direction == repository.Desc {
			dir = -1
		}
		findOpts.SetSort(bson.D{{Key: docField(ro.Order.Field), Value: dir}})
	}

	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, apperr.Unavailable("find", err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, apperr.Unavailable("cursor.All", err)
	}

	records := make([]repository.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, toRecord(doc))
	}

	return records, nil
}

// Create вставляет документ; ObjectID назначается на клиенте, чтобы сразу вернуть id
func (s *Store) Create(ctx context.Context, kind repository.Kind, attrs repository.Record) (repository.Record, error) {
	coll, err := s.collection(kind)
	if err != nil {
		return nil, err
	}

	oid := primitive.NewObjectID()
	doc := bson.M{mongoIDField: oid}
	for k, v := range attrs {
		if k == repository.FieldID {
			continue
		}
		doc[k] = v
	}

	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return nil, apperr.Unavailable("insertOne", err)
	}

	rec := attrs.Clone()
	rec[repository.FieldID] = oid.Hex()
	s.logger.Debug("document created", zap.String("kind", string(kind)), zap.String("id", rec.ID()))

	return rec, nil
}

// Update применяет $set к совпадающим документам без возврата их состояния
func (s *Store) Update(ctx context.Context, kind repository.Kind, criteria repository.Criteria, changes repository.Record) (repository.Ack, error) {
	coll, err := s.collection(kind)
	if err != nil {
		return repository.Ack{}, err
	}
	if len(criteria) == 0 {
		return repository.Ack{}, fmt.Errorf("%w: update requires criteria", apperr.ErrInvalidIdentifier)
	}
	filter, err := toFilter(criteria)
	if err != nil {
		return repository.Ack{}, err
	}

	set := bson.M{}
	for k, v := range changes {
		if repository.IsImmutable(k) {
			continue
		}
		set[k] = v
	}
	if len(set) == 0 {
		return repository.Ack{}, nil
	}

	res, err := coll.UpdateMany(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return repository.Ack{}, apperr.Unavailable("updateMany", err)
	}

	return repository.Ack{Affected: res.MatchedCount}, nil
}

// Remove удаляет все совпадающие документы одним запросом
func (s *Store) Remove(ctx context.Context, kind repository.Kind, criteria repository.Criteria) (repository.Ack, error) {
	coll, err := s.collection(kind)
	if err != nil {
		return repository.Ack{}, err
	}
	if len(criteria) == 0 {
		return repository.Ack{}, fmt.Errorf("%w: remove requires criteria", apperr.ErrInvalidIdentifier)
	}
	filter, err := toFilter(criteria)
	if err != nil {
		return repository.Ack{}, err
	}

	res, err := coll.DeleteMany(ctx, filter)
	if err != nil {
		return repository.Ack{}, apperr.Unavailable("deleteMany", err)
	}

	return repository.Ack{Affected: res.DeletedCount}, nil
}

func (s *Store) collection(kind repository.Kind) (Collection, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	return s.collections[kind], nil
}

// docField переводит логическое имя поля в имя поля документа
func docField(field string) string {
	if field == repository.FieldID {
		return mongoIDField
	}
	return field
}

func toFilter(criteria repository.Criteria) (bson.M, error) {
	filter := bson.M{}
	for field, value := range criteria {
		if field == repository.FieldID {
			oid, err := primitive.ObjectIDFromHex(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not an ObjectID", apperr.ErrInvalidIdentifier, value)
			}
			filter[mongoIDField] = oid
			continue
		}
		filter[field] = value
	}
	return filter, nil
}

// toProjection строит проекцию; _id исключается явно, если id не запрошен
func toProjection(fields []string) bson.D {
	proj := bson.D{}
	withID := false
	for _, f := range fields {
		if f == repository.FieldID {
			withID = true
		}
		proj = append(proj, bson.E{Key: docField(f), Value: 1})
	}
	if !withID {
		proj = append(proj, bson.E{Key: mongoIDField, Value: 0})
	}
	return proj
}

func toRecord(doc bson.M) repository.Record {
	rec := make(repository.Record, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case primitive.ObjectID:
			if k == mongoIDField {
				rec[repository.FieldID] = val.Hex()
				continue
			}
			rec[k] = val.Hex()
		case string:
			rec[k] = val
		case nil:
		default:
			rec[k] = fmt.Sprint(val)
		}
	}
	return rec
}
