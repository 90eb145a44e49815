// Package object реализует CRUD-контракт поверх плоского объектного хранилища (S3).
//
// Каждая сущность хранится JSON-объектом под ключом <collection>/<id>.
// Серверной фильтрации нет: чтение по id выполняется прямым GetObject, любое
// другое чтение перечисляет всю коллекцию через continuation token и фильтрует
// на клиенте. Это O(размер коллекции) и не опирается на индекс.
package object

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"notekeeper/internal/apperr"
	"notekeeper/internal/config"
	"notekeeper/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	contentTypeJSON       = "application/json"
	errCodePrecondition   = "PreconditionFailed"
	errCodeConditionalReq = "ConditionalRequestConflict"
)

// API подмножество методов *s3.Client, которые использует адаптер
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

var _ repository.Store = (*Store)(nil)

// Store адаптер объектного хранилища
type Store struct {
	client   API
	bucket   string
	prefixes map[repository.Kind]string
	pageSize int32
	workers  int
	logger   *zap.Logger
}

// New создает адаптер поверх готового клиента
func New(client API, cfg *config.ConfigS3, logger *zap.Logger) *Store {
	workers := cfg.WorkerConcurrency
	if workers <= 0 {
		workers = 1
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefixes: map[repository.Kind]string{
			repository.KindNote:    strings.Trim(cfg.NotesPrefix, "/"),
			repository.KindAccount: strings.Trim(cfg.AccountsPrefix, "/"),
		},
		pageSize: int32(cfg.PageSize),
		workers:  workers,
		logger:   logger,
	}
}

// Page результат постраничного перечисления id коллекции
type Page struct {
	IDs []string
	// Next токен продолжения; пуст, когда коллекция перечислена до конца
	Next string
}

// ListIDs перечисляет id коллекции, следуя за continuation token, пока
// ключи не закончатся или не будет прочитано pageLimit страниц (pageLimit <= 0
// снимает ограничение). Повторный вызов с Page.Next продолжает перечисление
// без пропусков и повторов; токен непрозрачен и не зависит от процесса.
func (s *Store) ListIDs(ctx context.Context, kind repository.Kind, token string, pageLimit int) (Page, error) {
	prefix, err := s.prefix(kind)
	if err != nil {
		return Page{}, err
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix + "/"),
	}
	if s.pageSize > 0 {
		input.MaxKeys = aws.Int32(s.pageSize)
	}
	if token != "" {
		input.ContinuationToken = aws.String(token)
	}

	var page Page
	for pages := 0; pageLimit <= 0 || pages < pageLimit; pages++ {
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}

		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return Page{}, s.wrap("ListObjectsV2", err)
		}
		for _, obj := range out.Contents {
			page.IDs = append(page.IDs, strings.TrimPrefix(aws.ToString(obj.Key), prefix+"/"))
		}

		next := aws.ToString(out.NextContinuationToken)
		if !aws.ToBool(out.IsTruncated) || next == "" {
			page.Next = ""
			return page, nil
		}
		page.Next = next
		input.ContinuationToken = aws.String(next)
	}

	return page, nil
}

// Read читает объект напрямую по id либо сканирует коллекцию и фильтрует на клиенте
func (s *Store) Read(ctx context.Context, kind repository.Kind, criteria repository.Criteria, opts ...repository.ReadOption) ([]repository.Record, error) {
	objs, err := s.matching(ctx, kind, criteria)
	if err != nil {
		return nil, err
	}

	records := make([]repository.Record, len(objs))
	for i, o := range objs {
		records[i] = o.record
	}
	return repository.Finish(records, repository.ApplyReadOptions(opts)), nil
}

// Create записывает объект под новым UUID с условием If-None-Match
func (s *Store) Create(ctx context.Context, kind repository.Kind, attrs repository.Record) (repository.Record, error) {
	if _, err := s.prefix(kind); err != nil {
		return nil, err
	}

	rec := attrs.Clone()
	rec[repository.FieldID] = uuid.NewString()

	if err := s.put(ctx, kind, rec, "", true); err != nil {
		return nil, err
	}

	s.logger.Debug("object created", zap.String("key", s.key(kind, rec.ID())))
	return rec, nil
}

// Update выполняет read-merge-write каждого совпадающего объекта.
// Запись защищена If-Match по ETag: параллельное изменение дает ErrConflict.
func (s *Store) Update(ctx context.Context, kind repository.Kind, criteria repository.Criteria, changes repository.Record) (repository.Ack, error) {
	if len(criteria) == 0 {
		return repository.Ack{}, fmt.Errorf("%w: update requires criteria", apperr.ErrInvalidIdentifier)
	}
	objs, err := s.matching(ctx, kind, criteria)
	if err != nil {
		return repository.Ack{}, err
	}

	var ack repository.Ack
	for _, o := range objs {
		if err := s.put(ctx, kind, o.record.Merge(changes), o.etag, false); err != nil {
			return ack, err
		}
		ack.Affected++
	}
	return ack, nil
}

// Remove удаляет совпадающие объекты; при нескольких совпадениях удаления
// выполняются параллельно, сбои собираются в *apperr.BulkError
func (s *Store) Remove(ctx context.Context, kind repository.Kind, criteria repository.Criteria) (repository.Ack, error) {
	if len(criteria) == 0 {
		return repository.Ack{}, fmt.Errorf("%w: remove requires criteria", apperr.ErrInvalidIdentifier)
	}
	objs, err := s.matching(ctx, kind, criteria)
	if err != nil {
		return repository.Ack{}, err
	}

	if len(objs) == 1 {
		if err := s.delete(ctx, kind, objs[0].record.ID()); err != nil {
			return repository.Ack{}, err
		}
		return repository.Ack{Affected: 1}, nil
	}

	var (
		mu   sync.Mutex
		bulk apperr.BulkError
		g    errgroup.Group
	)
	g.SetLimit(s.workers)
	for _, o := range objs {
		id := o.record.ID()
		g.Go(func() error {
			err := s.delete(ctx, kind, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				bulk.Add(id, err)
				return nil
			}
			bulk.Removed++
			return nil
		})
	}
	_ = g.Wait()

	return repository.Ack{Affected: int64(bulk.Removed)}, bulk.OrNil()
}

// stored объект вместе с ETag, прочитанным при загрузке
type stored struct {
	record repository.Record
	etag   string
}

func (s *Store) matching(ctx context.Context, kind repository.Kind, criteria repository.Criteria) ([]stored, error) {
	if _, err := s.prefix(kind); err != nil {
		return nil, err
	}

	if id, ok := criteria[repository.FieldID]; ok {
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: %q is not a valid object id", apperr.ErrInvalidIdentifier, id)
		}
		o, found, err := s.get(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if !found || !criteria.Matches(o.record) {
			return nil, nil
		}
		return []stored{o}, nil
	}

	s.logger.Debug("object store read without id scans the whole collection",
		zap.String("kind", string(kind)), zap.Any("criteria", criteria))

	all, err := s.scan(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, o := range all {
		if criteria.Matches(o.record) {
			out = append(out, o)
		}
	}
	return out, nil
}

// scan перечисляет коллекцию до конца и загружает объекты параллельно
func (s *Store) scan(ctx context.Context, kind repository.Kind) ([]stored, error) {
	page, err := s.ListIDs(ctx, kind, "", 0)
	if err != nil {
		return nil, err
	}

	objs := make([]stored, len(page.IDs))
	found := make([]bool, len(page.IDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, id := range page.IDs {
		g.Go(func() error {
			o, ok, err := s.get(gctx, kind, id)
			if err != nil {
				return err
			}
			objs[i], found[i] = o, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Объект мог быть удален между перечислением и чтением
	out := make([]stored, 0, len(objs))
	for i, o := range objs {
		if found[i] {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) get(ctx context.Context, kind repository.Kind, id string) (stored, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(kind, id)),
	})
	if err != nil {
		var nk *types.NoSuchKey
		if errors.As(err, &nk) {
			return stored{}, false, nil
		}
		return stored{}, false, s.wrap("GetObject", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return stored{}, false, apperr.Unavailable("read object body", err)
	}

	var rec repository.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return stored{}, false, fmt.Errorf("decode object %s: %w", s.key(kind, id), err)
	}
	if rec == nil {
		rec = repository.Record{}
	}
	rec[repository.FieldID] = id

	return stored{record: rec, etag: aws.ToString(out.ETag)}, true, nil
}

// put сериализует запись; ifAbsent требует отсутствия объекта, etag - совпадения версии
func (s *Store) put(ctx context.Context, kind repository.Kind, rec repository.Record, etag string, ifAbsent bool) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode object: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(kind, rec.ID())),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentTypeJSON),
	}
	if ifAbsent {
		input.IfNoneMatch = aws.String("*")
	}
	if etag != "" {
		input.IfMatch = aws.String(etag)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == errCodePrecondition || apiErr.ErrorCode() == errCodeConditionalReq) {
			return fmt.Errorf("%w: object %s was modified concurrently", apperr.ErrConflict, rec.ID())
		}
		return s.wrap("PutObject", err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, kind repository.Kind, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(kind, id)),
	})
	if err != nil {
		return s.wrap("DeleteObject", err)
	}
	return nil
}

func (s *Store) prefix(kind repository.Kind) (string, error) {
	if err := kind.Validate(); err != nil {
		return "", err
	}
	return s.prefixes[kind], nil
}

func (s *Store) key(kind repository.Kind, id string) string {
	return s.prefixes[kind] + "/" + id
}

func (s *Store) wrap(op string, err error) error {
	var nb *types.NoSuchBucket
	if errors.As(err, &nb) {
		return apperr.Unavailable(op, fmt.Errorf("bucket %q does not exist: %w", s.bucket, err))
	}
	return apperr.Unavailable(op, err)
}
