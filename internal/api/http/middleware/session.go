package middleware

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionIssuer     = "notekeeper"
	defaultSessionTTL = 24 * time.Hour
)

// ErrInvalidSession токен сессии не прошел проверку подписи, срока или формата
var ErrInvalidSession = errors.New("invalid session token")

// Sessions выпускает и проверяет подписанные токены сессии (JWT, HS256).
// Subject токена - ID аккаунта, от имени которого выполняются запросы.
type Sessions struct {
	secret    []byte
	ttl       time.Duration
	ephemeral bool
	now       func() time.Time
}

// NewSessions создает выпускающего токены. Пустой secret заменяется случайным
// ключом процесса: такие сессии не переживают перезапуск (см. Ephemeral).
func NewSessions(secret string, ttl time.Duration) (*Sessions, error) {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	s := &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("rand.Read: %w", err)
		}
		s.secret = key
		s.ephemeral = true
	}

	return s, nil
}

// Ephemeral сообщает, что ключ подписи сгенерирован при старте процесса
func (s *Sessions) Ephemeral() bool {
	return s.ephemeral
}

// Issue выпускает токен для аккаунта и возвращает момент его истечения
func (s *Sessions) Issue(accountID string) (string, time.Time, error) {
	if accountID == "" {
		return "", time.Time{}, fmt.Errorf("%w: empty account id", ErrInvalidSession)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token.SignedString: %w", err)
	}

	return token, expiresAt, nil
}

// Verify проверяет подпись и срок токена и возвращает ID аккаунта
func (s *Sessions) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}

	return claims.Subject, nil
}
