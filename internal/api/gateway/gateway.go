package gateway

import (
	"fmt"
	"net/http"
	"strings"

	"notekeeper/internal/api/http/middleware"
	"notekeeper/internal/api/rest"
	"notekeeper/internal/config"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Setup собирает HTTP handler API: маршруты на runtime.ServeMux и цепочку middleware.
// /healthz обслуживается вне аутентификации и ограничения частоты.
func Setup(cfg *config.ConfigGateway, sessions *middleware.Sessions, handler *rest.Handler, logger *zap.Logger) (http.Handler, error) {
	gwMux := runtime.NewServeMux()
	if err := handler.Register(gwMux); err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	var api http.Handler = gwMux
	api = middleware.Auth(api, sessions)
	api = middleware.RateLimit(api, cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/", api)

	// Применение middleware (в обратном порядке выполнения):
	// 1. CORS (самый внешний слой, обрабатывает preflight)
	// 2. Logging (логирует все запросы)
	// 3. Rate Limiting и Auth (только для маршрутов API)
	var h http.Handler = mux
	h = middleware.Logging(h, logger)
	h = setupCORS(cfg).Handler(h)

	if sessions.Ephemeral() {
		logger.Warn("auth.session_secret is empty, sessions are signed with a per-process key")
	}
	logger.Info("http api configured", zap.String("cors_origins", cfg.CORSAllowedOrigins))

	return h, nil
}

// setupCORS настраивает CORS middleware используя конфигурацию
func setupCORS(cfg *config.ConfigGateway) *cors.Cors {
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	maxAge := cfg.CORSMaxAge
	if maxAge == 0 {
		maxAge = 86400 // 24 часа по умолчанию
	}

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-Requested-With",
		},
		AllowCredentials: true,
		MaxAge:           maxAge,
	})
}
