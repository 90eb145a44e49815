package middleware

import (
	"context"
	"net/http"
	"strings"
)

const (
	// authorizationHeader - заголовок с токеном сессии
	authorizationHeader = "Authorization"

	bearerPrefix = "Bearer "
)

type accountKey struct{}

// WithAccountID кладет ID аккаунта в контекст запроса
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountKey{}, accountID)
}

// AccountID возвращает ID аккаунта из контекста, если запрос пришел с действующей сессией
func AccountID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountKey{}).(string)
	return id, ok && id != ""
}

// Auth проверяет токен сессии в заголовке "Authorization" в формате "Bearer <token>"
// и кладет ID аккаунта из токена в контекст. Запрос без заголовка проходит дальше
// анонимным: маршруты, которым нужен аккаунт, сами отвечают 401.
func Auth(next http.Handler, sessions *Sessions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(authorizationHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		accountID, err := sessions.Verify(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			http.Error(w, "invalid session token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
	})
}
