package service

import (
	"context"

	"notekeeper/internal/model"
)

// NoteService бизнес-логика заметок; все операции выполняются от имени владельца ownerID
type NoteService interface {
	// Create создает заметку, если у владельца нет другой заметки с тем же именем
	Create(ctx context.Context, ownerID, name, body string) (model.Note, error)

	// Get возвращает заметку по ID после проверки владельца
	Get(ctx context.Context, ownerID, id string) (model.Note, error)

	// List возвращает все заметки владельца, отсортированные по имени
	List(ctx context.Context, ownerID string) ([]model.Note, error)

	// Names возвращает id и имена заметок владельца, отсортированные по имени
	Names(ctx context.Context, ownerID string) ([]model.NoteSummary, error)

	// Update меняет имя и текст заметки после проверки владельца и уникальности имени
	Update(ctx context.Context, ownerID, id, name, body string) (model.Note, error)

	// Delete удаляет заметку после проверки владельца
	Delete(ctx context.Context, ownerID, id string) error

	// DeleteAll удаляет все заметки владельца и возвращает число удаленных
	DeleteAll(ctx context.Context, ownerID string) (int64, error)
}

// AccountService бизнес-логика учетных записей
type AccountService interface {
	// Register создает аккаунт с уникальным email; хэш пароля вычисляется вызывающей стороной
	Register(ctx context.Context, email, passwordHash string) (model.Account, error)

	// Get возвращает аккаунт по ID
	Get(ctx context.Context, id string) (model.Account, error)

	// FindByEmail возвращает аккаунт по email (для входа)
	FindByEmail(ctx context.Context, email string) (model.Account, error)

	// ChangeEmail меняет email, если он не занят другим аккаунтом
	ChangeEmail(ctx context.Context, id, email string) (model.Account, error)

	// ChangePasswordHash заменяет сохраненный хэш пароля
	ChangePasswordHash(ctx context.Context, id, passwordHash string) error

	// Delete удаляет все заметки владельца, затем сам аккаунт
	Delete(ctx context.Context, id string) error
}
