package model

import (
	"fmt"
	"strings"

	"notekeeper/internal/apperr"
)

// Account представляет учетную запись владельца заметок
type Account struct {
	ID           string
	Email        string
	PasswordHash string // Хэш пароля, вычисляется вне хранилища
}

// Validate проверяет валидность аккаунта
func (a *Account) Validate() error {
	email := strings.TrimSpace(a.Email)
	if email == "" {
		return fmt.Errorf("%w: email cannot be empty", apperr.ErrValidation)
	}
	if at := strings.IndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return fmt.Errorf("%w: email %q is malformed", apperr.ErrValidation, email)
	}
	if a.PasswordHash == "" {
		return fmt.Errorf("%w: password hash cannot be empty", apperr.ErrValidation)
	}
	return nil
}
