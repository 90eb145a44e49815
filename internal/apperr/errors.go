// Package apperr содержит типизированные ошибки хранилища и бизнес-слоя.
package apperr

import (
	"errors"
	"fmt"
	"sort"

	multierror "github.com/hashicorp/go-multierror"
)

var (
	// ErrNotFound возвращается, когда ожидалась ровно одна сущность, а найдено ни одной
	ErrNotFound = errors.New("not found")

	// ErrInvalidIdentifier возвращается, когда критерии нельзя привести к ключу или индексу адаптера
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrConflict возвращается при нарушении уникальности (имя заметки у владельца, email аккаунта)
	ErrConflict = errors.New("conflict")

	// ErrForbidden возвращается, когда сущность принадлежит другому владельцу
	ErrForbidden = errors.New("forbidden")

	// ErrBackendUnavailable оборачивает сетевые и I/O ошибки физического хранилища
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrValidation возвращается при невалидных значениях полей
	ErrValidation = errors.New("validation failed")

	// ErrUnknownKind возвращается для неизвестного типа сущности
	ErrUnknownKind = errors.New("unknown entity kind")
)

// Unavailable оборачивает ошибку клиента хранилища в ErrBackendUnavailable
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrBackendUnavailable, err)
}

// BulkError описывает частичный сбой массового удаления.
// Каждое неудачное удаление фиксируется отдельно, успешные не откатываются.
type BulkError struct {
	Removed int
	Failed  map[string]error
}

// Add регистрирует сбой удаления сущности id
func (e *BulkError) Add(id string, err error) {
	if e.Failed == nil {
		e.Failed = make(map[string]error)
	}
	e.Failed[id] = err
}

// IDs возвращает отсортированный список id, удаление которых не удалось
func (e *BulkError) IDs() []string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *BulkError) multi() *multierror.Error {
	var merr *multierror.Error
	for _, id := range e.IDs() {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", id, e.Failed[id]))
	}
	return merr
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk remove: %d removed, %d failed: %s", e.Removed, len(e.Failed), e.multi().Error())
}

// Unwrap позволяет проверять вложенные ошибки через errors.Is/As
func (e *BulkError) Unwrap() []error {
	return e.multi().WrappedErrors()
}

// OrNil возвращает nil, если сбоев не было
func (e *BulkError) OrNil() error {
	if e == nil || len(e.Failed) == 0 {
		return nil
	}
	return e
}
