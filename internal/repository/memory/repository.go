package memory

import (
	"context"
	"fmt"
	"sync"

	"notekeeper/internal/apperr"
	"notekeeper/internal/repository"

	"github.com/google/uuid"
)

var _ repository.Store = (*repo)(nil)

type repo struct {
	mu      sync.RWMutex
	records map[repository.Kind]map[string]repository.Record
}

// NewRepository создает новый экземпляр in-memory хранилища на основе map.
// Чтение сразу видит результат записи.
func NewRepository() repository.Store {
	return &repo{
		records: map[repository.Kind]map[string]repository.Record{
			repository.KindNote:    make(map[string]repository.Record),
			repository.KindAccount: make(map[string]repository.Record),
		},
	}
}

// Read возвращает записи, совпадающие с критериями
func (r *repo) Read(ctx context.Context, kind repository.Kind, criteria repository.Criteria, opts ...repository.ReadOption) ([]repository.Record, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if id, ok := criteria[repository.FieldID]; ok {
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidIdentifier, id)
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]repository.Record, 0)
	for _, rec := range r.match(kind, criteria) {
		result = append(result, rec.Clone())
	}

	return repository.Finish(result, repository.ApplyReadOptions(opts)), nil
}

// Create сохраняет запись под новым UUID
func (r *repo) Create(ctx context.Context, kind repository.Kind, attrs repository.Record) (repository.Record, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := attrs.Clone()
	rec[repository.FieldID] = uuid.NewString()
	r.records[kind][rec.ID()] = rec

	return rec.Clone(), nil
}

// Update применяет изменения ко всем совпадающим записям
func (r *repo) Update(ctx context.Context, kind repository.Kind, criteria repository.Criteria, changes repository.Record) (repository.Ack, error) {
	if err := kind.Validate(); err != nil {
		return repository.Ack{}, err
	}
	if len(criteria) == 0 {
		return repository.Ack{}, fmt.Errorf("%w: update requires criteria", apperr.ErrInvalidIdentifier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	matched := r.match(kind, criteria)
	for _, rec := range matched {
		r.records[kind][rec.ID()] = rec.Merge(changes)
	}

	return repository.Ack{Affected: int64(len(matched))}, nil
}

// Remove удаляет все совпадающие записи
func (r *repo) Remove(ctx context.Context, kind repository.Kind, criteria repository.Criteria) (repository.Ack, error) {
	if err := kind.Validate(); err != nil {
		return repository.Ack{}, err
	}
	if len(criteria) == 0 {
		return repository.Ack{}, fmt.Errorf("%w: remove requires criteria", apperr.ErrInvalidIdentifier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	matched := r.match(kind, criteria)
	for _, rec := range matched {
		delete(r.records[kind], rec.ID())
	}

	return repository.Ack{Affected: int64(len(matched))}, nil
}

// match вызывается под блокировкой
func (r *repo) match(kind repository.Kind, criteria repository.Criteria) []repository.Record {
	if id, ok := criteria[repository.FieldID]; ok {
		rec, exists := r.records[kind][id]
		if !exists || !criteria.Matches(rec) {
			return nil
		}
		return []repository.Record{rec}
	}

	var out []repository.Record
	for _, rec := range r.records[kind] {
		if criteria.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}
