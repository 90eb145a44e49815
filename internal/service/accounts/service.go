package accounts

import (
	"context"
	"fmt"
	"strings"

	"notekeeper/internal/apperr"
	"notekeeper/internal/converter"
	"notekeeper/internal/model"
	"notekeeper/internal/repository"
	svc "notekeeper/internal/service"

	"go.uber.org/zap"
)

var _ svc.AccountService = (*service)(nil)

type service struct {
	store  repository.Store
	notes  svc.NoteService
	logger *zap.Logger
}

// NewAccountService создает сервис учетных записей.
// Удаление аккаунта каскадно удаляет его заметки через notes.
// Уникальность email проверяется так же, как имя заметки: check-then-act без
// атомарной гарантии, а на key-value бэкенде через индекс email с отложенной
// согласованностью.
func NewAccountService(store repository.Store, notes svc.NoteService, logger *zap.Logger) svc.AccountService {
	return &service{
		store:  store,
		notes:  notes,
		logger: logger,
	}
}

func (s *service) Register(ctx context.Context, email, passwordHash string) (model.Account, error) {
	account := model.Account{
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
	}
	if err := account.Validate(); err != nil {
		return model.Account{}, err
	}

	if err := s.checkEmailFree(ctx, account.Email, ""); err != nil {
		return model.Account{}, err
	}

	rec, err := s.store.Create(ctx, repository.KindAccount, converter.AccountToRecord(account))
	if err != nil {
		return model.Account{}, err
	}
	account.ID = rec.ID()

	s.logger.Info("account registered", zap.String("account_id", account.ID))

	return account, nil
}

func (s *service) Get(ctx context.Context, id string) (model.Account, error) {
	if id == "" {
		return model.Account{}, fmt.Errorf("%w: id cannot be empty", apperr.ErrValidation)
	}

	return s.findOne(ctx, repository.Criteria{repository.FieldID: id})
}

func (s *service) FindByEmail(ctx context.Context, email string) (model.Account, error) {
	email = normalizeEmail(email)
	if email == "" {
		return model.Account{}, fmt.Errorf("%w: email cannot be empty", apperr.ErrValidation)
	}

	return s.findOne(ctx, repository.Criteria{repository.FieldEmail: email})
}

func (s *service) ChangeEmail(ctx context.Context, id, email string) (model.Account, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return model.Account{}, err
	}

	account.Email = normalizeEmail(email)
	if err := account.Validate(); err != nil {
		return model.Account{}, err
	}

	if err := s.checkEmailFree(ctx, account.Email, id); err != nil {
		return model.Account{}, err
	}

	if err := s.update(ctx, id, repository.Record{repository.FieldEmail: account.Email}); err != nil {
		return model.Account{}, err
	}

	return account, nil
}

func (s *service) ChangePasswordHash(ctx context.Context, id, passwordHash string) error {
	if passwordHash == "" {
		return fmt.Errorf("%w: password hash cannot be empty", apperr.ErrValidation)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	return s.update(ctx, id, repository.Record{repository.FieldPasswordHash: passwordHash})
}

// Delete сначала удаляет все заметки владельца. Если хотя бы одна заметка не
// удалилась, аккаунт остается на месте и вызывающая сторона может повторить запрос.
func (s *service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	removed, err := s.notes.DeleteAll(ctx, id)
	if err != nil {
		s.logger.Warn("account notes removal failed, account kept",
			zap.String("account_id", id),
			zap.Int64("removed", removed),
			zap.Error(err))
		return err
	}

	ack, err := s.store.Remove(ctx, repository.KindAccount, repository.Criteria{repository.FieldID: id})
	if err != nil {
		return err
	}
	if ack.Affected == 0 {
		return fmt.Errorf("%w: account %s", apperr.ErrNotFound, id)
	}

	s.logger.Info("account deleted", zap.String("account_id", id), zap.Int64("notes_removed", removed))

	return nil
}

func (s *service) findOne(ctx context.Context, criteria repository.Criteria) (model.Account, error) {
	records, err := s.store.Read(ctx, repository.KindAccount, criteria)
	if err != nil {
		return model.Account{}, err
	}
	if len(records) == 0 {
		return model.Account{}, fmt.Errorf("%w: account", apperr.ErrNotFound)
	}
	if len(records) > 1 {
		s.logger.Warn("duplicate accounts found", zap.Int("count", len(records)))
	}

	return converter.RecordToAccount(records[0]), nil
}

func (s *service) update(ctx context.Context, id string, changes repository.Record) error {
	ack, err := s.store.Update(ctx, repository.KindAccount, repository.Criteria{repository.FieldID: id}, changes)
	if err != nil {
		return err
	}
	if ack.Affected == 0 {
		return fmt.Errorf("%w: account %s", apperr.ErrNotFound, id)
	}
	return nil
}

// checkEmailFree возвращает ErrConflict, если email занят любым другим аккаунтом.
// Проверяются все совпадения: после гонки регистраций их может быть несколько.
func (s *service) checkEmailFree(ctx context.Context, email, exceptID string) error {
	records, err := s.store.Read(ctx, repository.KindAccount,
		repository.Criteria{repository.FieldEmail: email},
		repository.WithProjection(repository.FieldID))
	if err != nil {
		return err
	}

	for _, rec := range records {
		if rec.ID() != exceptID {
			return fmt.Errorf("%w: email %q already registered", apperr.ErrConflict, email)
		}
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
