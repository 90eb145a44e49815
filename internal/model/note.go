package model

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"notekeeper/internal/apperr"
)

const (
	// NoteNameMaxLen максимальная длина имени заметки
	NoteNameMaxLen = 100
	// NoteBodyMaxLen максимальная длина текста заметки
	NoteBodyMaxLen = 1000
)

// Note представляет заметку (доменная модель)
type Note struct {
	ID      string // Идентификатор, назначается хранилищем
	OwnerID string // Владелец, не меняется после создания
	Name    string // Имя, уникально в пределах владельца
	Body    string // Текст заметки
}

// Validate проверяет валидность заметки
func (n *Note) Validate() error {
	if strings.TrimSpace(n.OwnerID) == "" {
		return fmt.Errorf("%w: owner_id cannot be empty", apperr.ErrValidation)
	}
	if strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", apperr.ErrValidation)
	}
	if utf8.RuneCountInString(n.Name) > NoteNameMaxLen {
		return fmt.Errorf("%w: name longer than %d characters", apperr.ErrValidation, NoteNameMaxLen)
	}
	if utf8.RuneCountInString(n.Body) > NoteBodyMaxLen {
		return fmt.Errorf("%w: body longer than %d characters", apperr.ErrValidation, NoteBodyMaxLen)
	}
	return nil
}

// NoteSummary краткое представление заметки для списка имен
type NoteSummary struct {
	ID   string
	Name string
}
