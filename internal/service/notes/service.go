package notes

import (
	"context"
	"fmt"
	"strings"

	"notekeeper/internal/apperr"
	"notekeeper/internal/converter"
	"notekeeper/internal/model"
	"notekeeper/internal/repository"
	svc "notekeeper/internal/service"
)

var _ svc.NoteService = (*service)(nil)

type service struct {
	store repository.Store
}

// NewNoteService создает новый экземпляр сервиса для работы с заметками.
//
// Уникальность имени проверяется по схеме check-then-act: между проверкой и
// записью конкурентный запрос может создать заметку с тем же именем. Ни один
// бэкенд не дает атомарного ограничения уникальности между элементами, поэтому
// это окно остается допустимым ограничением. На key-value бэкенде проверка
// идет через индекс с отложенной согласованностью и может не увидеть только
// что созданную заметку.
func NewNoteService(store repository.Store) svc.NoteService {
	return &service{
		store: store,
	}
}

// Create создает новую заметку владельца
func (s *service) Create(ctx context.Context, ownerID, name, body string) (model.Note, error) {
	note := model.Note{
		OwnerID: ownerID,
		Name:    strings.TrimSpace(name),
		Body:    strings.TrimSpace(body),
	}
	if err := note.Validate(); err != nil {
		return model.Note{}, err
	}

	if err := s.checkNameFree(ctx, ownerID, note.Name, ""); err != nil {
		return model.Note{}, err
	}

	rec, err := s.store.Create(ctx, repository.KindNote, converter.NoteToRecord(note))
	if err != nil {
		return model.Note{}, err
	}
	note.ID = rec.ID()

	return note, nil
}

// Get возвращает заметку по ID, если она принадлежит владельцу
func (s *service) Get(ctx context.Context, ownerID, id string) (model.Note, error) {
	return s.load(ctx, ownerID, id)
}

// List возвращает все заметки владельца
func (s *service) List(ctx context.Context, ownerID string) ([]model.Note, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner_id cannot be empty", apperr.ErrValidation)
	}

	records, err := s.store.Read(ctx, repository.KindNote,
		repository.Criteria{repository.FieldOwnerID: ownerID},
		repository.WithOrder(repository.FieldName, repository.Asc))
	if err != nil {
		return nil, err
	}

	return converter.RecordsToNotes(records), nil
}

// Names возвращает только id и имена заметок владельца
func (s *service) Names(ctx context.Context, ownerID string) ([]model.NoteSummary, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner_id cannot be empty", apperr.ErrValidation)
	}

	records, err := s.store.Read(ctx, repository.KindNote,
		repository.Criteria{repository.FieldOwnerID: ownerID},
		repository.WithProjection(repository.FieldID, repository.FieldName),
		repository.WithOrder(repository.FieldName, repository.Asc))
	if err != nil {
		return nil, err
	}

	return converter.RecordsToSummaries(records), nil
}

// Update обновляет заметку (пустое имя оставляет прежнее, текст заменяется всегда)
func (s *service) Update(ctx context.Context, ownerID, id, name, body string) (model.Note, error) {
	existing, err := s.load(ctx, ownerID, id)
	if err != nil {
		return model.Note{}, err
	}

	updated := existing
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		updated.Name = trimmed
	}
	updated.Body = strings.TrimSpace(body)

	if err := updated.Validate(); err != nil {
		return model.Note{}, err
	}

	if updated.Name != existing.Name {
		if err := s.checkNameFree(ctx, ownerID, updated.Name, id); err != nil {
			return model.Note{}, err
		}
	}

	ack, err := s.store.Update(ctx, repository.KindNote,
		repository.Criteria{repository.FieldID: id, repository.FieldOwnerID: ownerID},
		repository.Record{repository.FieldName: updated.Name, repository.FieldBody: updated.Body})
	if err != nil {
		return model.Note{}, err
	}
	if ack.Affected == 0 {
		return model.Note{}, fmt.Errorf("%w: note %s", apperr.ErrNotFound, id)
	}

	return updated, nil
}

// Delete удаляет заметку владельца
func (s *service) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := s.load(ctx, ownerID, id); err != nil {
		return err
	}

	ack, err := s.store.Remove(ctx, repository.KindNote,
		repository.Criteria{repository.FieldID: id, repository.FieldOwnerID: ownerID})
	if err != nil {
		return err
	}
	if ack.Affected == 0 {
		return fmt.Errorf("%w: note %s", apperr.ErrNotFound, id)
	}

	return nil
}

// DeleteAll удаляет все заметки владельца. При частичном сбое возвращается
// *apperr.BulkError, уже удаленные заметки не восстанавливаются.
func (s *service) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("%w: owner_id cannot be empty", apperr.ErrValidation)
	}

	ack, err := s.store.Remove(ctx, repository.KindNote, repository.Criteria{repository.FieldOwnerID: ownerID})
	return ack.Affected, err
}

// load читает заметку и проверяет владельца до любых изменений
func (s *service) load(ctx context.Context, ownerID, id string) (model.Note, error) {
	if id == "" {
		return model.Note{}, fmt.Errorf("%w: id cannot be empty", apperr.ErrValidation)
	}

	records, err := s.store.Read(ctx, repository.KindNote, repository.Criteria{repository.FieldID: id})
	if err != nil {
		return model.Note{}, err
	}
	if len(records) == 0 {
		return model.Note{}, fmt.Errorf("%w: note %s", apperr.ErrNotFound, id)
	}

	note := converter.RecordToNote(records[0])
	if note.OwnerID != ownerID {
		return model.Note{}, fmt.Errorf("%w: note %s belongs to another owner", apperr.ErrForbidden, id)
	}

	return note, nil
}

// checkNameFree возвращает ErrConflict, если у владельца есть другая заметка с таким именем
func (s *service) checkNameFree(ctx context.Context, ownerID, name, exceptID string) error {
	records, err := s.store.Read(ctx, repository.KindNote,
		repository.Criteria{repository.FieldOwnerID: ownerID, repository.FieldName: name},
		repository.WithProjection(repository.FieldID))
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.ID() != exceptID {
			return fmt.Errorf("%w: note named %q already exists", apperr.ErrConflict, name)
		}
	}

	return nil
}
