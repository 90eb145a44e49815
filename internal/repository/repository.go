package repository

import (
	"context"
	"fmt"

	"notekeeper/internal/apperr"
)

// Kind тип сущности в хранилище
type Kind string

const (
	KindNote    Kind = "note"
	KindAccount Kind = "account"
)

// Validate проверяет, что тип сущности известен
func (k Kind) Validate() error {
	switch k {
	case KindNote, KindAccount:
		return nil
	}
	return fmt.Errorf("%w: %q", apperr.ErrUnknownKind, string(k))
}

// Логические имена полей, общие для всех адаптеров
const (
	FieldID           = "id"
	FieldOwnerID      = "owner_id"
	FieldName         = "name"
	FieldBody         = "body"
	FieldEmail        = "email"
	FieldPasswordHash = "password_hash"
)

// Store единый CRUD-контракт над физическим хранилищем.
// Реализация выбирается один раз при старте процесса.
type Store interface {
	// Read возвращает все сущности, совпадающие с критериями (пустой срез, если совпадений нет)
	Read(ctx context.Context, kind Kind, criteria Criteria, opts ...ReadOption) ([]Record, error)

	// Create сохраняет новую сущность и возвращает ее вместе с назначенным id.
	// Уникальность не проверяется.
	Create(ctx context.Context, kind Kind, attrs Record) (Record, error)

	// Update применяет изменения к совпадающим сущностям.
	// Несуществующий ключ может молча дать Ack{Affected: 0}.
	Update(ctx context.Context, kind Kind, criteria Criteria, changes Record) (Ack, error)

	// Remove удаляет все сущности, совпадающие с критериями
	Remove(ctx context.Context, kind Kind, criteria Criteria) (Ack, error)
}

// Ack подтверждение изменяющей операции
type Ack struct {
	Affected int64
}
